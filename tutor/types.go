// Package tutor is the orchestration layer: it combines retrieval, the LLM,
// the scorer, and the stores into the operations the API exposes.
package tutor

// LessonChunk is one digestible section of a generated lesson.
type LessonChunk struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	KeyPoint string `json:"key_point"`
}

// Lesson is the structured lesson payload delivered to learners.
type Lesson struct {
	Topic        string        `json:"topic"`
	Overview     string        `json:"overview"`
	Chunks       []LessonChunk `json:"chunks"`
	KeyTakeaways []string      `json:"key_takeaways"`
}

// CurriculumLesson is one planned lesson inside a curriculum.
type CurriculumLesson struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	LearningObjectives []string `json:"learning_objectives"`
	EstimatedTime      string   `json:"estimated_time"`
	Difficulty         string   `json:"difficulty"`
	Prerequisites      []string `json:"prerequisites"`
	TargetsGaps        []string `json:"targets_gaps"`
}

// Curriculum is a personalized learning plan built from assessment gaps.
type Curriculum struct {
	ID                string             `json:"curriculum_id"`
	Topic             string             `json:"topic"`
	TotalLessons      int                `json:"total_lessons"`
	EstimatedDuration string             `json:"estimated_duration"`
	Lessons           []CurriculumLesson `json:"lessons"`
}

// QuizResult summarizes one lesson quiz attempt.
type QuizResult struct {
	Score          float64 `json:"score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
	Passed         bool    `json:"passed"`
	Feedback       string  `json:"feedback"`
}

// ProgressReport is the learner-facing progress view with recommendations.
type ProgressReport struct {
	UserID           string             `json:"user_id"`
	Name             string             `json:"name"`
	CompetencyScores map[string]float64 `json:"competency_scores"`
	LearningPath     []string           `json:"learning_path"`
	LessonsCompleted int                `json:"lessons_completed"`
	TotalLessons     int                `json:"total_lessons"`
	QuizScores       []float64          `json:"quiz_scores"`
	AverageQuizScore float64            `json:"average_quiz_score"`
	Recommendations  []string           `json:"recommendations"`
}
