package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tutoring tables if they do not exist. The corpus
// table needs the pgvector extension; dimension must match the configured
// embedding model.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			competency_scores JSONB NOT NULL DEFAULT '{}',
			knowledge_gaps JSONB NOT NULL DEFAULT '{}',
			strong_areas JSONB NOT NULL DEFAULT '{}',
			learning_path JSONB NOT NULL DEFAULT '[]',
			current_curriculum UUID,
			total_lessons INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS competency_reports (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			topic TEXT NOT NULL,
			report JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS lessons (
			id UUID PRIMARY KEY,
			topic TEXT NOT NULL,
			content JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS curricula (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			topic TEXT NOT NULL,
			plan JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS progress (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			lessons_completed INT NOT NULL DEFAULT 0,
			quiz_scores JSONB NOT NULL DEFAULT '[]',
			average_quiz_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS corpus_chunks (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_reports_user ON competency_reports(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_lessons_topic ON lessons(topic)",
		"CREATE INDEX IF NOT EXISTS idx_curricula_user ON curricula(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_corpus_chunks_source ON corpus_chunks(source)",
		"CREATE INDEX IF NOT EXISTS idx_corpus_chunks_embedding ON corpus_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
