// Package assessment turns answered multiple-choice question batches into a
// competency report: per-concept performance, knowledge gaps, strong areas,
// a remediation path, and lesson recommendations. Scoring is a pure,
// single-shot transformation with no state carried between calls.
package assessment

// Question is a multiple-choice question authored by the LLM collaborator.
// Scoring only consumes Correct and Concept; question quality is validated
// elsewhere.
type Question struct {
	Text       string   `json:"question"`
	Options    []string `json:"options"`
	Correct    string   `json:"correct"`
	Concept    string   `json:"concept"`
	Difficulty int      `json:"difficulty"`
}

// AnswerSet maps a question index (string key, "0"-based per batch) to the
// submitted option letter.
type AnswerSet map[string]string

// ConceptPerformance accumulates attempts and correct answers for one concept
// across both assessment phases of a single scoring run.
type ConceptPerformance struct {
	Attempted int `json:"attempted"`
	Correct   int `json:"correct"`
}

// CompetencyReport summarizes a learner's performance on a completed
// assessment. Not mutated after creation.
type CompetencyReport struct {
	OverallScore       float64                       `json:"overall_score"`
	KnowledgeGaps      []string                      `json:"knowledge_gaps"`
	StrongAreas        []string                      `json:"strong_areas"`
	ConceptPerformance map[string]ConceptPerformance `json:"concept_performance"`
	LearningPath       []string                      `json:"learning_path"`
	RecommendedLessons []string                      `json:"recommended_lessons"`
}
