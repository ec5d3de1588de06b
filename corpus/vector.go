package corpus

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/profai/embeddings"
)

// VectorRanker is an embedding-based Ranker backed by pgvector. It honors the
// same contract as KeywordRanker, so callers can swap retrieval strategies
// without touching anything else.
type VectorRanker struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
}

func NewVectorRanker(pool *pgxpool.Pool, embedder embeddings.Embedder) *VectorRanker {
	return &VectorRanker{pool: pool, embedder: embedder}
}

func (r *VectorRanker) Rank(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		return []Chunk{}, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if r.embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := k * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT source, content
        FROM corpus_chunks
        ORDER BY embedding <-> $1::vector
        LIMIT $2
    `, pgvector.NewVector(vectors[0]), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Chunk, 0, k)
	for rows.Next() {
		var chunk Chunk
		if err := rows.Scan(&chunk.Source, &chunk.Text); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		results = append(results, chunk)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

var _ Ranker = (*VectorRanker)(nil)

// IndexChunks embeds every chunk in the index and replaces the corpus_chunks
// table contents with the result. Reindex wholesale rather than patching in
// place so concurrent readers always see a consistent corpus.
func IndexChunks(ctx context.Context, pool *pgxpool.Pool, embedder embeddings.Embedder, index *Index) error {
	if embedder == nil {
		return fmt.Errorf("embedder is not configured")
	}
	if index == nil || index.Len() == 0 {
		return fmt.Errorf("index is empty")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "DELETE FROM corpus_chunks"); err != nil {
		return fmt.Errorf("clear corpus chunks: %w", err)
	}

	position := 0
	for _, source := range index.sources {
		texts := index.chunks[source]
		if len(texts) == 0 {
			continue
		}

		vectors, embedErr := embedder.Embed(ctx, texts)
		if embedErr != nil {
			err = fmt.Errorf("embed chunks for %s: %w", source, embedErr)
			return err
		}
		if len(vectors) != len(texts) {
			err = fmt.Errorf("embedding count mismatch for %s: have %d chunks, %d embeddings", source, len(texts), len(vectors))
			return err
		}

		for i, text := range texts {
			if _, err = tx.Exec(ctx, `
				INSERT INTO corpus_chunks (id, source, chunk_index, content, embedding, created_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
			`, uuid.New(), source, position, text, pgvector.NewVector(vectors[i])); err != nil {
				err = fmt.Errorf("insert chunk %d of %s: %w", i, source, err)
				return err
			}
			position++
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
