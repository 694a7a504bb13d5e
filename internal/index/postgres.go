package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Postgres stores chunks in PostgreSQL with the pgvector extension. Ordering
// uses the cosine distance operator `<=>` at both index build time and query
// time.
type Postgres struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewPostgres wraps an existing connection pool. The pool is shared with the
// document store and closed by the owner, not here.
func NewPostgres(pool *pgxpool.Pool, dimension int) *Postgres {
	return &Postgres{pool: pool, dimension: dimension}
}

// Init ensures the pgvector extension, chunk table, and HNSW cosine index
// exist. Concurrent reads and writes rely on Postgres transaction guarantees;
// no locks are taken here.
func (p *Postgres) Init(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
		chunk_id BIGSERIAL PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INT NOT NULL,
		chunk_text TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		meta_data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (document_id, chunk_index)
	)`, p.dimension)
	if _, err := p.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create chunk table: %w", err)
	}

	createIndex := `CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx
		ON document_chunks USING hnsw (embedding vector_cosine_ops)
		WITH (m = 16, ef_construction = 64)`
	if _, err := p.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

func (p *Postgres) Store(ctx context.Context, chunk Chunk) (int64, error) {
	if len(chunk.Embedding) != p.dimension {
		return 0, fmt.Errorf("index: vector dimension %d, want %d", len(chunk.Embedding), p.dimension)
	}
	meta, err := marshalMeta(chunk.Metadata)
	if err != nil {
		return 0, err
	}

	var id int64
	err = p.pool.QueryRow(ctx,
		`INSERT INTO document_chunks (document_id, chunk_index, chunk_text, embedding, meta_data)
		 VALUES ($1, $2, $3, $4::vector, $5)
		 RETURNING chunk_id`,
		chunk.DocumentID, chunk.Index, chunk.Text, vectorLiteral(chunk.Embedding), meta,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrDuplicateChunk
		}
		return 0, fmt.Errorf("store chunk: %w", err)
	}
	return id, nil
}

func (p *Postgres) Search(ctx context.Context, vector []float32, limit int, maxDistance float64) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}
	lit := vectorLiteral(vector)

	rows, err := p.pool.Query(ctx,
		`SELECT chunk_id, document_id, chunk_index, chunk_text, meta_data, created_at, updated_at,
		        embedding <=> $1::vector AS distance
		 FROM document_chunks
		 WHERE embedding <=> $1::vector <= $2
		 ORDER BY distance
		 LIMIT $3`,
		lit, maxDistance, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, limit)
	for rows.Next() {
		var m Match
		var meta []byte
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.Index, &m.Chunk.Text,
			&meta, &m.Chunk.CreatedAt, &m.Chunk.UpdatedAt, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := unmarshalMeta(meta, &m.Chunk.Metadata); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return matches, nil
}

func (p *Postgres) Get(ctx context.Context, id int64) (Chunk, error) {
	var c Chunk
	var meta []byte
	err := p.pool.QueryRow(ctx,
		`SELECT chunk_id, document_id, chunk_index, chunk_text, meta_data, created_at, updated_at
		 FROM document_chunks WHERE chunk_id = $1`,
		id,
	).Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &meta, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chunk{}, ErrNotFound
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("get chunk: %w", err)
	}
	if err := unmarshalMeta(meta, &c.Metadata); err != nil {
		return Chunk{}, err
	}
	return c, nil
}

func (p *Postgres) Update(ctx context.Context, id int64, text string, vector []float32, metadata map[string]any) (Chunk, error) {
	if text == "" || len(vector) == 0 {
		return Chunk{}, ErrTextWithoutVector
	}
	if len(vector) != p.dimension {
		return Chunk{}, fmt.Errorf("index: vector dimension %d, want %d", len(vector), p.dimension)
	}
	meta, err := marshalMeta(metadata)
	if err != nil {
		return Chunk{}, err
	}

	var c Chunk
	var outMeta []byte
	err = p.pool.QueryRow(ctx,
		`UPDATE document_chunks
		 SET chunk_text = $2, embedding = $3::vector, meta_data = COALESCE($4, meta_data), updated_at = NOW()
		 WHERE chunk_id = $1
		 RETURNING chunk_id, document_id, chunk_index, chunk_text, meta_data, created_at, updated_at`,
		id, text, vectorLiteral(vector), meta,
	).Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &outMeta, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chunk{}, ErrNotFound
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("update chunk: %w", err)
	}
	if err := unmarshalMeta(outMeta, &c.Metadata); err != nil {
		return Chunk{}, err
	}
	c.Embedding = vector
	return c, nil
}

func (p *Postgres) Delete(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM document_chunks WHERE chunk_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chunk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Close() error {
	// Pool lifecycle belongs to the caller that created it.
	return nil
}

// vectorLiteral renders a vector in pgvector's text format.
func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func marshalMeta(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

func unmarshalMeta(b []byte, dst *map[string]any) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	return nil
}
