package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a shared pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Init ensures the corpus and document tables exist.
func (p *Postgres) Init(ctx context.Context) error {
	createCorpora := `CREATE TABLE IF NOT EXISTS corpora (
		corpus_id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		corpus_key TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, corpus_key)
	)`
	if _, err := p.pool.Exec(ctx, createCorpora); err != nil {
		return fmt.Errorf("create corpora table: %w", err)
	}

	createDocuments := `CREATE TABLE IF NOT EXISTS documents (
		document_id TEXT PRIMARY KEY,
		corpus_id BIGINT NOT NULL REFERENCES corpora (corpus_id),
		user_id TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		doc_name TEXT NOT NULL,
		source_url TEXT,
		raw_text TEXT,
		tags JSONB,
		tags_failed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := p.pool.Exec(ctx, createDocuments); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (p *Postgres) EnsureCorpus(ctx context.Context, userID, key string) (Corpus, error) {
	var c Corpus
	// ON CONFLICT DO UPDATE so the row is always returned, including the
	// concurrent-creation race where another ingestion inserted first.
	err := p.pool.QueryRow(ctx,
		`INSERT INTO corpora (user_id, corpus_key)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, corpus_key) DO UPDATE SET corpus_key = EXCLUDED.corpus_key
		 RETURNING corpus_id, user_id, corpus_key, created_at`,
		userID, key,
	).Scan(&c.ID, &c.UserID, &c.Key, &c.CreatedAt)
	if err != nil {
		return Corpus{}, fmt.Errorf("ensure corpus: %w", err)
	}
	return c, nil
}

func (p *Postgres) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO documents (document_id, corpus_id, user_id, doc_type, doc_name, source_url, raw_text, tags, tags_failed)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		 ON CONFLICT (document_id) DO UPDATE SET
			corpus_id = EXCLUDED.corpus_id,
			source_url = EXCLUDED.source_url,
			raw_text = EXCLUDED.raw_text,
			tags = EXCLUDED.tags,
			tags_failed = EXCLUDED.tags_failed,
			updated_at = NOW()`,
		doc.ID, doc.CorpusID, doc.UserID, doc.Type, doc.Name, doc.SourceURL, doc.RawText, []byte(doc.Tags), doc.TagsFailed,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (p *Postgres) GetDocument(ctx context.Context, id string) (Document, error) {
	var d Document
	var sourceURL *string
	var tags []byte
	err := p.pool.QueryRow(ctx,
		`SELECT document_id, corpus_id, user_id, doc_type, doc_name, source_url, raw_text, tags, tags_failed, created_at, updated_at
		 FROM documents WHERE document_id = $1`,
		id,
	).Scan(&d.ID, &d.CorpusID, &d.UserID, &d.Type, &d.Name, &sourceURL, &d.RawText, &tags, &d.TagsFailed, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	if sourceURL != nil {
		d.SourceURL = *sourceURL
	}
	d.Tags = tags
	return d, nil
}

func (p *Postgres) DeleteDocument(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE document_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Close() error {
	// Pool lifecycle belongs to the caller that created it.
	return nil
}
