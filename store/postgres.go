package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabfab/profai/assessment"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) CreateUser(ctx context.Context, name string) (User, error) {
	user := User{
		ID:               uuid.NewString(),
		Name:             name,
		CompetencyScores: map[string]float64{},
		KnowledgeGaps:    map[string][]string{},
		StrongAreas:      map[string][]string{},
		LearningPath:     []string{},
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, competency_scores, knowledge_gaps, strong_areas, learning_path)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Name, user.CompetencyScores, user.KnowledgeGaps, user.StrongAreas, user.LearningPath); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (s *PostgresStore) User(ctx context.Context, id string) (User, error) {
	var (
		user       User
		curriculum *uuid.UUID
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, competency_scores, knowledge_gaps, strong_areas,
		       learning_path, current_curriculum, total_lessons, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID, &user.Name, &user.CompetencyScores, &user.KnowledgeGaps,
		&user.StrongAreas, &user.LearningPath, &curriculum, &user.TotalLessons,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	if curriculum != nil {
		user.CurrentCurriculum = curriculum.String()
	}
	return user, nil
}

func (s *PostgresStore) ApplyReport(ctx context.Context, userID, topic string, report assessment.CompetencyReport) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO competency_reports (id, user_id, topic, report)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), userID, topic, payload); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	gaps, err := json.Marshal(report.KnowledgeGaps)
	if err != nil {
		return fmt.Errorf("marshal knowledge gaps: %w", err)
	}
	strong, err := json.Marshal(report.StrongAreas)
	if err != nil {
		return fmt.Errorf("marshal strong areas: %w", err)
	}
	path, err := json.Marshal(report.LearningPath)
	if err != nil {
		return fmt.Errorf("marshal learning path: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET competency_scores = jsonb_set(competency_scores, ARRAY[$2]::text[], to_jsonb($3::double precision)),
		    knowledge_gaps = jsonb_set(knowledge_gaps, ARRAY[$2]::text[], $4::jsonb),
		    strong_areas = jsonb_set(strong_areas, ARRAY[$2]::text[], $5::jsonb),
		    learning_path = $6::jsonb,
		    updated_at = NOW()
		WHERE id = $1
	`, userID, topic, report.OverallScore, gaps, strong, path)
	if err != nil {
		return fmt.Errorf("update user competency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrNotFound
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveLesson(ctx context.Context, topic string, content json.RawMessage) (string, error) {
	id := uuid.NewString()
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO lessons (id, topic, content) VALUES ($1, $2, $3)
	`, id, topic, content); err != nil {
		return "", fmt.Errorf("insert lesson: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) LessonByTopic(ctx context.Context, topic string) (json.RawMessage, error) {
	var content json.RawMessage
	err := s.pool.QueryRow(ctx, `
		SELECT content FROM lessons WHERE topic = $1 ORDER BY created_at DESC LIMIT 1
	`, topic).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query lesson: %w", err)
	}
	return content, nil
}

func (s *PostgresStore) SaveCurriculum(ctx context.Context, userID, topic string, plan json.RawMessage) (string, error) {
	id := uuid.NewString()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO curricula (id, user_id, topic, plan) VALUES ($1, $2, $3, $4)
	`, id, userID, topic, plan); err != nil {
		return "", fmt.Errorf("insert curriculum: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		UPDATE users SET current_curriculum = $2, updated_at = NOW() WHERE id = $1
	`, userID, id); err != nil {
		return "", fmt.Errorf("update current curriculum: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) RecordQuizScore(ctx context.Context, userID string, score float64) (Progress, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO progress (user_id, quiz_scores, average_quiz_score)
		VALUES ($1, to_jsonb(ARRAY[$2::double precision]), $2)
		ON CONFLICT (user_id) DO UPDATE
		SET quiz_scores = progress.quiz_scores || to_jsonb($2::double precision),
		    average_quiz_score = (
		        SELECT avg(value::double precision)
		        FROM jsonb_array_elements_text(progress.quiz_scores || to_jsonb($2::double precision)) AS value
		    ),
		    updated_at = NOW()
		RETURNING user_id, lessons_completed, quiz_scores, average_quiz_score
	`, userID, score)

	return scanProgress(row)
}

func (s *PostgresStore) MarkLessonCompleted(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO progress (user_id, lessons_completed)
		VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET lessons_completed = progress.lessons_completed + 1,
		    updated_at = NOW()
	`, userID); err != nil {
		return fmt.Errorf("mark lesson completed: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		UPDATE users SET total_lessons = total_lessons + 1, updated_at = NOW() WHERE id = $1
	`, userID); err != nil {
		return fmt.Errorf("update user lesson count: %w", err)
	}
	return nil
}

func (s *PostgresStore) Progress(ctx context.Context, userID string) (Progress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, lessons_completed, quiz_scores, average_quiz_score
		FROM progress WHERE user_id = $1
	`, userID)

	progress, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No progress yet is not an error; return the zero record.
			return Progress{UserID: userID, QuizScores: []float64{}}, nil
		}
		return Progress{}, err
	}
	return progress, nil
}

func scanProgress(row pgx.Row) (Progress, error) {
	var progress Progress
	if err := row.Scan(&progress.UserID, &progress.LessonsCompleted, &progress.QuizScores, &progress.AverageQuizScore); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Progress{}, pgx.ErrNoRows
		}
		return Progress{}, fmt.Errorf("scan progress: %w", err)
	}
	return progress, nil
}
