package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/fabfab/profai/assessment"
	"github.com/fabfab/profai/corpus"
	"github.com/fabfab/profai/knowledge"
	"github.com/fabfab/profai/llm"
	"github.com/fabfab/profai/store"
)

// ConceptGraph is the engine's view of the concept graph: assessment outcomes
// go in, accumulated weak-concept insights come back out for curriculum
// prompts. The engine treats graph failures as non-fatal.
type ConceptGraph interface {
	SyncAssessment(ctx context.Context, userID, topic string, report assessment.CompetencyReport) error
	WeakestConcepts(ctx context.Context, userID string, limit int) ([]knowledge.ConceptInsight, error)
}

// weakConceptLimit bounds how many graph insights feed a curriculum prompt.
const weakConceptLimit = 5

// Deps are the engine's collaborators. Graph may be nil; a nil Logger falls
// back to log.Default().
type Deps struct {
	Ranker corpus.Ranker
	LLM    llm.Client
	Store  store.Store
	Graph  ConceptGraph
	Logger *log.Logger
}

// Params tune generation sizes.
type Params struct {
	RetrievalTopK       int
	LessonChunks        int
	AssessmentQuestions int
}

type Engine struct {
	ranker corpus.Ranker
	llm    llm.Client
	store  store.Store
	graph  ConceptGraph
	logger *log.Logger
	params Params
}

func NewEngine(deps Deps, params Params) *Engine {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if params.RetrievalTopK <= 0 {
		params.RetrievalTopK = 3
	}
	if params.LessonChunks <= 0 {
		params.LessonChunks = 4
	}
	if params.AssessmentQuestions <= 0 {
		params.AssessmentQuestions = 5
	}
	return &Engine{
		ranker: deps.Ranker,
		llm:    deps.LLM,
		store:  deps.Store,
		graph:  deps.Graph,
		logger: deps.Logger,
		params: params,
	}
}

// retrieveContext pulls course material for the prompt. Retrieval failure
// degrades to an empty context rather than failing the operation.
func (e *Engine) retrieveContext(ctx context.Context, query string) string {
	chunks, err := e.ranker.Rank(ctx, query, e.params.RetrievalTopK)
	if err != nil {
		e.logger.Printf("retrieval failed for %q: %v", query, err)
		return ""
	}
	return corpus.BuildContext(chunks)
}

// GenerateInitialAssessment produces the diagnostic question round for a topic.
func (e *Engine) GenerateInitialAssessment(ctx context.Context, topic string) ([]assessment.Question, error) {
	prompt := initialAssessmentPrompt(topic, e.retrieveContext(ctx, topic), e.params.AssessmentQuestions)
	return e.generateQuestions(ctx, prompt)
}

// GenerateAdaptiveAssessment produces the follow-up round, aimed at the
// concepts the initial answers got wrong.
func (e *Engine) GenerateAdaptiveAssessment(ctx context.Context, topic string, initial []assessment.Question, answers assessment.AnswerSet) ([]assessment.Question, error) {
	weak := missedConcepts(initial, answers)
	prompt := adaptiveAssessmentPrompt(topic, e.retrieveContext(ctx, topic), e.params.AssessmentQuestions, weak)
	return e.generateQuestions(ctx, prompt)
}

func (e *Engine) generateQuestions(ctx context.Context, prompt string) ([]assessment.Question, error) {
	raw, err := e.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	var questions []assessment.Question
	if err := llm.DecodeJSON(raw, &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}
	return questions, nil
}

func missedConcepts(questions []assessment.Question, answers assessment.AnswerSet) []string {
	var (
		missed []string
		seen   = map[string]bool{}
	)
	for i, q := range questions {
		if answers[strconv.Itoa(i)] == q.Correct {
			continue
		}
		concept := q.Concept
		if concept == "" {
			continue
		}
		if !seen[concept] {
			seen[concept] = true
			missed = append(missed, concept)
		}
	}
	return missed
}

// CompleteAssessment scores both rounds, persists the report, and kicks off
// the downstream updates. Graph sync and curriculum generation are best
// effort; the report is still returned when they fail.
func (e *Engine) CompleteAssessment(ctx context.Context, userID, topic string, initial []assessment.Question, initialAnswers assessment.AnswerSet, adaptive []assessment.Question, adaptiveAnswers assessment.AnswerSet) (assessment.CompetencyReport, error) {
	report, err := assessment.Score(initial, initialAnswers, adaptive, adaptiveAnswers)
	if err != nil {
		return assessment.CompetencyReport{}, err
	}

	if err := e.store.ApplyReport(ctx, userID, topic, report); err != nil {
		return assessment.CompetencyReport{}, fmt.Errorf("apply report: %w", err)
	}

	if e.graph != nil {
		if err := e.graph.SyncAssessment(ctx, userID, topic, report); err != nil {
			e.logger.Printf("graph sync failed for user %s: %v", userID, err)
		}
	}

	if len(report.KnowledgeGaps) > 0 {
		if _, err := e.GenerateCurriculum(ctx, userID, topic, report.KnowledgeGaps); err != nil {
			e.logger.Printf("curriculum generation failed for user %s: %v", userID, err)
		}
	}

	return report, nil
}

// GenerateLesson builds a personalized lesson. On model failure it falls back
// to the latest cached lesson for the topic, then to a canned lesson, so the
// learner is never left without content.
func (e *Engine) GenerateLesson(ctx context.Context, userID, topic string) (Lesson, error) {
	user, err := e.store.User(ctx, userID)
	if err != nil {
		return Lesson{}, fmt.Errorf("load user: %w", err)
	}
	competency := user.CompetencyScores[topic]

	prompt := lessonPrompt(topic, e.retrieveContext(ctx, topic), competency, e.params.LessonChunks)
	raw, err := e.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		e.logger.Printf("lesson generation failed for %q: %v", topic, err)
		return e.lessonFallback(ctx, topic), nil
	}

	var lesson Lesson
	if err := llm.DecodeJSON(raw, &lesson); err != nil {
		e.logger.Printf("lesson decode failed for %q: %v", topic, err)
		return e.lessonFallback(ctx, topic), nil
	}
	if lesson.Topic == "" {
		lesson.Topic = topic
	}

	payload, err := json.Marshal(lesson)
	if err != nil {
		return Lesson{}, fmt.Errorf("marshal lesson: %w", err)
	}
	if _, err := e.store.SaveLesson(ctx, topic, payload); err != nil {
		e.logger.Printf("save lesson failed for %q: %v", topic, err)
	}

	return lesson, nil
}

func (e *Engine) lessonFallback(ctx context.Context, topic string) Lesson {
	cached, err := e.store.LessonByTopic(ctx, topic)
	if err == nil {
		var lesson Lesson
		if err := json.Unmarshal(cached, &lesson); err == nil {
			return lesson
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		e.logger.Printf("cached lesson lookup failed for %q: %v", topic, err)
	}
	return fallbackLesson(topic)
}

// GenerateCurriculum asks the model for a learning plan addressing the gaps
// and stores it as the user's current curriculum. When the concept graph is
// available, the learner's historically weakest concepts are folded into the
// prompt so the plan weighs recurring weaknesses, not just this assessment.
func (e *Engine) GenerateCurriculum(ctx context.Context, userID, topic string, gaps []string) (Curriculum, error) {
	weakest := e.weakestConceptNotes(ctx, userID)
	raw, err := e.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: curriculumPrompt(topic, gaps, weakest)}})
	if err != nil {
		return Curriculum{}, fmt.Errorf("generate curriculum: %w", err)
	}

	var curriculum Curriculum
	if err := llm.DecodeJSON(raw, &curriculum); err != nil {
		return Curriculum{}, fmt.Errorf("decode curriculum: %w", err)
	}
	if curriculum.Topic == "" {
		curriculum.Topic = topic
	}
	if curriculum.TotalLessons == 0 {
		curriculum.TotalLessons = len(curriculum.Lessons)
	}

	payload, err := json.Marshal(curriculum)
	if err != nil {
		return Curriculum{}, fmt.Errorf("marshal curriculum: %w", err)
	}
	id, err := e.store.SaveCurriculum(ctx, userID, topic, payload)
	if err != nil {
		return Curriculum{}, fmt.Errorf("save curriculum: %w", err)
	}
	curriculum.ID = id

	return curriculum, nil
}

// weakestConceptNotes renders the learner's graph insights as prompt lines.
// A missing or failing graph yields no notes.
func (e *Engine) weakestConceptNotes(ctx context.Context, userID string) []string {
	if e.graph == nil {
		return nil
	}

	insights, err := e.graph.WeakestConcepts(ctx, userID, weakConceptLimit)
	if err != nil {
		e.logger.Printf("weakest concepts lookup failed for user %s: %v", userID, err)
		return nil
	}

	notes := make([]string, 0, len(insights))
	for _, insight := range insights {
		notes = append(notes, fmt.Sprintf("%s (%.0f%% accuracy)", insight.Concept, insight.Accuracy*100))
	}
	return notes
}

// Explain answers a learner's free-form question about a topic, grounded in
// retrieved course material. When the model supports streaming the answer is
// delivered incrementally through fn; otherwise fn receives it in one call.
func (e *Engine) Explain(ctx context.Context, topic, question string, fn func(string) error) error {
	prompt := explanationPrompt(topic, question, e.retrieveContext(ctx, topic+" "+question))
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	if streamer, ok := e.llm.(llm.StreamClient); ok {
		err := streamer.GenerateStream(ctx, messages, func(chunk string) error {
			if chunk == "" {
				return nil
			}
			return fn(chunk)
		})
		if err != nil {
			return fmt.Errorf("stream explanation: %w", err)
		}
		return nil
	}

	answer, err := e.llm.Generate(ctx, messages)
	if err != nil {
		return fmt.Errorf("generate explanation: %w", err)
	}
	return fn(answer)
}

// GenerateLessonQuiz creates comprehension questions for a delivered lesson.
func (e *Engine) GenerateLessonQuiz(ctx context.Context, lesson Lesson) ([]assessment.Question, error) {
	return e.generateQuestions(ctx, lessonQuizPrompt(lesson))
}

// EvaluateLessonQuiz grades a quiz attempt, records the score, and returns
// the result with feedback. Answers are keyed by question index.
func (e *Engine) EvaluateLessonQuiz(ctx context.Context, userID string, questions []assessment.Question, answers assessment.AnswerSet) (QuizResult, error) {
	total := len(questions)
	if total == 0 {
		return QuizResult{}, assessment.ErrEmptyAssessment
	}

	correct := 0
	for i, q := range questions {
		if answers[strconv.Itoa(i)] == q.Correct {
			correct++
		}
	}

	score := float64(correct) / float64(total) * 10
	percentage := float64(correct) / float64(total) * 100

	if _, err := e.store.RecordQuizScore(ctx, userID, score); err != nil {
		return QuizResult{}, fmt.Errorf("record quiz score: %w", err)
	}

	return QuizResult{
		Score:          score,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Percentage:     percentage,
		Passed:         score >= 7.0,
		Feedback:       quizFeedback(percentage),
	}, nil
}

func quizFeedback(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Excellent! You have mastered this material."
	case percentage >= 80:
		return "Great job! You have a strong understanding of the concepts."
	case percentage >= 70:
		return "Good work! You understand most of the material, but review the areas you missed."
	case percentage >= 60:
		return "You're getting there! Review the lesson material and try again."
	default:
		return "Consider reviewing the lesson material more thoroughly before continuing."
	}
}

// CompleteLesson marks one more lesson finished for the user.
func (e *Engine) CompleteLesson(ctx context.Context, userID string) error {
	return e.store.MarkLessonCompleted(ctx, userID)
}

// Progress assembles the learner-facing progress view.
func (e *Engine) Progress(ctx context.Context, userID string) (ProgressReport, error) {
	user, err := e.store.User(ctx, userID)
	if err != nil {
		return ProgressReport{}, fmt.Errorf("load user: %w", err)
	}
	progress, err := e.store.Progress(ctx, userID)
	if err != nil {
		return ProgressReport{}, fmt.Errorf("load progress: %w", err)
	}

	return ProgressReport{
		UserID:           user.ID,
		Name:             user.Name,
		CompetencyScores: user.CompetencyScores,
		LearningPath:     user.LearningPath,
		LessonsCompleted: progress.LessonsCompleted,
		TotalLessons:     user.TotalLessons,
		QuizScores:       progress.QuizScores,
		AverageQuizScore: progress.AverageQuizScore,
		Recommendations:  recommendations(user, progress),
	}, nil
}

func recommendations(user store.User, progress store.Progress) []string {
	recs := []string{}

	switch {
	case progress.LessonsCompleted == 0:
		recs = append(recs, "Start with your first lesson!")
	case progress.AverageQuizScore < 7:
		recs = append(recs, "Review previous lessons to strengthen understanding")
	case user.TotalLessons > 0 && float64(progress.LessonsCompleted)/float64(user.TotalLessons) > 0.8:
		recs = append(recs, "You're almost done! Complete the final lessons")
	}

	return recs
}
