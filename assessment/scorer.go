package assessment

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrEmptyAssessment is returned when a scoring run receives zero questions.
var ErrEmptyAssessment = errors.New("assessment has no questions")

// unknownConcept is substituted for questions missing a concept label so a
// single malformed record cannot abort the whole batch.
const unknownConcept = "unknown"

const (
	fundamentalsThreshold = 3
	advancedThreshold     = 7
)

// Score converts an initial and an adaptive batch of answered questions into
// a CompetencyReport. Answer matching is exact and case-sensitive. A concept
// with both right and wrong answers appears in both KnowledgeGaps and
// StrongAreas; each list is deduplicated in first-encounter order.
func Score(initial []Question, initialAnswers AnswerSet, adaptive []Question, adaptiveAnswers AnswerSet) (CompetencyReport, error) {
	total := len(initial) + len(adaptive)
	if total == 0 {
		return CompetencyReport{}, ErrEmptyAssessment
	}

	perf := make(map[string]ConceptPerformance, total)
	gaps := make([]string, 0)
	strong := make([]string, 0)
	correct := 0

	scoreBatch := func(questions []Question, answers AnswerSet) {
		for i, q := range questions {
			concept := q.Concept
			if concept == "" {
				concept = unknownConcept
			}

			right := answers[strconv.Itoa(i)] == q.Correct
			if right {
				correct++
				strong = appendOnce(strong, concept)
			} else {
				gaps = appendOnce(gaps, concept)
			}

			cp := perf[concept]
			cp.Attempted++
			if right {
				cp.Correct++
			}
			perf[concept] = cp
		}
	}

	scoreBatch(initial, initialAnswers)
	scoreBatch(adaptive, adaptiveAnswers)

	overall := 10 * float64(correct) / float64(total)
	if overall < 0 {
		overall = 0
	}
	if overall > 10 {
		overall = 10
	}

	return CompetencyReport{
		OverallScore:       overall,
		KnowledgeGaps:      gaps,
		StrongAreas:        strong,
		ConceptPerformance: perf,
		LearningPath:       learningPath(gaps, perf),
		RecommendedLessons: recommendLessons(gaps, overall),
	}, nil
}

// learningPath orders knowledge gaps worst-performing first, with any concept
// whose name contains "fundamental" moved to the front. Both the fundamentals
// and the remainder keep their relative order.
func learningPath(gaps []string, perf map[string]ConceptPerformance) []string {
	sorted := append([]string(nil), gaps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return accuracy(perf, sorted[i]) < accuracy(perf, sorted[j])
	})

	path := make([]string, 0, len(sorted))
	for _, concept := range sorted {
		if strings.Contains(strings.ToLower(concept), "fundamental") {
			path = append(path, concept)
		}
	}
	for _, concept := range sorted {
		if !strings.Contains(strings.ToLower(concept), "fundamental") {
			path = append(path, concept)
		}
	}
	return path
}

func accuracy(perf map[string]ConceptPerformance, concept string) float64 {
	cp := perf[concept]
	attempted := cp.Attempted
	if attempted < 1 {
		attempted = 1
	}
	return float64(cp.Correct) / float64(attempted)
}

// recommendLessons applies the fixed recommendation rules: a fundamentals
// review below score 3, one deep dive per gap, advanced applications above 7.
func recommendLessons(gaps []string, overall float64) []string {
	lessons := make([]string, 0, len(gaps)+2)
	if overall < fundamentalsThreshold {
		lessons = append(lessons, "Fundamentals Review")
	}
	for _, gap := range gaps {
		lessons = append(lessons, "Deep Dive: "+gap)
	}
	if overall > advancedThreshold {
		lessons = append(lessons, "Advanced Applications")
	}
	return lessons
}

func appendOnce(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
