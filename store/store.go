// Package store persists user profiles, competency reports, lessons,
// curricula, and quiz progress. The scoring core never touches storage; the
// tutor engine hands finished reports here.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fabfab/profai/assessment"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// User is a learner profile. Per-topic competency data mirrors the shape the
// assessment scorer produces.
type User struct {
	ID                string
	Name              string
	CompetencyScores  map[string]float64
	KnowledgeGaps     map[string][]string
	StrongAreas       map[string][]string
	LearningPath      []string
	CurrentCurriculum string
	TotalLessons      int
	CreatedAt         time.Time
}

// Progress tracks quiz outcomes and lesson completion for one user.
type Progress struct {
	UserID           string
	LessonsCompleted int
	QuizScores       []float64
	AverageQuizScore float64
}

type Store interface {
	CreateUser(ctx context.Context, name string) (User, error)
	User(ctx context.Context, id string) (User, error)

	// ApplyReport records a completed assessment: it archives the report and
	// folds its scores, gaps, strong areas, and learning path into the user
	// profile under the given topic.
	ApplyReport(ctx context.Context, userID, topic string, report assessment.CompetencyReport) error

	SaveLesson(ctx context.Context, topic string, content json.RawMessage) (string, error)
	LessonByTopic(ctx context.Context, topic string) (json.RawMessage, error)

	SaveCurriculum(ctx context.Context, userID, topic string, plan json.RawMessage) (string, error)

	RecordQuizScore(ctx context.Context, userID string, score float64) (Progress, error)
	MarkLessonCompleted(ctx context.Context, userID string) error
	Progress(ctx context.Context, userID string) (Progress, error)
}
