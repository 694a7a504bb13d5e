package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/corpusd/corpusd/internal/chunker"
	"github.com/corpusd/corpusd/internal/index"
	"github.com/corpusd/corpusd/internal/store"
	"github.com/corpusd/corpusd/internal/textnorm"
)

// Worker processes a single document job.
type Worker struct {
	deps         Deps
	log          *slog.Logger
	policy       chunker.FixedPolicy
	stageTimeout time.Duration
}

func NewWorker(deps Deps, log *slog.Logger, policy chunker.FixedPolicy, stageTimeout time.Duration) *Worker {
	return &Worker{
		deps:         deps,
		log:          log,
		policy:       policy,
		stageTimeout: stageTimeout,
	}
}

// Process runs the full ingest pipeline for a job. Stage always reflects the
// last step that completed, so a failed job tells the caller how far it got.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "document_id", job.DocumentID, "user_id", job.UserID)
	job.SetStatus(StatusRunning)

	// Phase 1: Extract. Pre-extracted text skips the registry.
	text := job.Text()
	if text == "" {
		extracted, err := w.deps.Extractor.Extract(ctx, job.DocType, job.Data(), job.SourceURL)
		if err != nil {
			log.Error("extraction failed", "error", err)
			job.Fail(fmt.Sprintf("extract: %s", err))
			return
		}
		text = extracted
	}
	text = textnorm.Normalize(text)
	if text == "" {
		log.Warn("no extractable content")
		job.Fail("no extractable content")
		return
	}
	job.SetText(text)
	job.SetStage(StageExtracted)

	// Phase 2: Tag. Failure here is recorded but never stops ingestion; the
	// document is still stored and searchable without tags.
	var tagsJSON json.RawMessage
	tagCtx, cancel := context.WithTimeout(ctx, w.stageTimeout)
	tags, err := w.deps.Tagger.Tag(tagCtx, text)
	cancel()
	if err != nil {
		log.Warn("tagging failed, continuing without tags", "error", err)
		job.MarkTaggingFailed()
		job.AddError(fmt.Sprintf("tagging: %s", err))
	} else {
		if b, merr := json.Marshal(tags); merr == nil {
			tagsJSON = b
		}
	}
	job.SetStage(StageTagged)

	// Phase 3: Chunk.
	chunks, err := chunker.FixedWindow(text, w.policy)
	if err != nil {
		log.Error("chunking failed", "error", err)
		job.Fail(fmt.Sprintf("chunk: %s", err))
		return
	}
	job.SetTotalChunks(len(chunks))
	job.SetStage(StageChunked)
	log.Info("chunked document", "chunks", len(chunks))

	// Phase 4: Embed the whole batch. A single failed batch fails the whole
	// ingestion; there is no per-chunk partial embedding.
	vectors, err := w.embedWithRetry(ctx, chunks, log)
	if err != nil {
		log.Error("embedding failed", "error", err)
		job.Fail(fmt.Sprintf("embed: %s", err))
		return
	}
	if len(vectors) != len(chunks) {
		job.Fail(fmt.Sprintf("embed: got %d vectors for %d chunks", len(vectors), len(chunks)))
		return
	}
	job.SetStage(StageEmbedded)

	// Phase 5: Persist document then chunks, sequentially and in order. A
	// mid-batch failure leaves earlier chunks in place; the persisted count
	// is reported so the caller can resume or delete-and-retry.
	corpus, err := w.deps.Store.EnsureCorpus(ctx, job.UserID, job.CorpusKey)
	if err != nil {
		log.Error("corpus lookup failed", "error", err)
		job.Fail(fmt.Sprintf("persist: %s", err))
		return
	}
	err = w.deps.Store.UpsertDocument(ctx, store.Document{
		ID:         job.DocumentID,
		CorpusID:   corpus.ID,
		UserID:     job.UserID,
		Type:       job.DocType,
		Name:       job.DocName,
		SourceURL:  job.SourceURL,
		RawText:    text,
		Tags:       tagsJSON,
		TagsFailed: job.TaggingFailed(),
	})
	if err != nil {
		log.Error("document upsert failed", "error", err)
		job.Fail(fmt.Sprintf("persist: %s", err))
		return
	}

	persisted := 0
	for i, c := range chunks {
		_, err := w.deps.Index.Store(ctx, index.Chunk{
			DocumentID: job.DocumentID,
			Index:      c.Index,
			Text:       c.Content,
			Embedding:  vectors[i],
			Metadata: map[string]any{
				"doc_type": job.DocType,
				"doc_name": job.DocName,
			},
		})
		if err != nil {
			perr := &PartialPersistError{
				DocumentID: job.DocumentID,
				Persisted:  persisted,
				Total:      len(chunks),
				Err:        err,
			}
			log.Error("chunk persist failed", "chunk_index", c.Index, "persisted", persisted, "error", err)
			job.SetChunksPersisted(persisted)
			job.Fail(perr.Error())
			return
		}
		persisted++
	}
	job.SetChunksPersisted(persisted)
	job.SetStage(StagePersisted)
	job.SetStatus(StatusCompleted)
	log.Info("ingestion complete", "chunks_persisted", persisted)
}

// embedWithRetry embeds all chunk texts as one batch, retrying transient
// provider errors with backoff.
func (w *Worker) embedWithRetry(ctx context.Context, chunks []chunker.Chunk, log *slog.Logger) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	var vectors [][]float32
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		embedCtx, cancel := context.WithTimeout(ctx, w.stageTimeout)
		vectors, lastErr = w.deps.Embedder.Embed(embedCtx, texts)
		cancel()
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable embedding error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return vectors, nil
}
