package pipeline

import (
	"sync"
	"time"
)

// Stage is the last completed step of the ingestion state machine.
type Stage string

const (
	StageQueued    Stage = "queued"
	StageExtracted Stage = "extracted"
	StageTagged    Stage = "tagged"
	StageChunked   Stage = "chunked"
	StageEmbedded  Stage = "embedded"
	StagePersisted Stage = "persisted"
)

// Status is the overall job state. A failed job keeps Stage at the last
// completed step so callers know how far ingestion progressed.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job tracks the state of a single document ingestion.
type Job struct {
	mu sync.Mutex

	ID         string `json:"job_id"`
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	CorpusKey  string `json:"corpus_key"`
	DocType    string `json:"doc_type"`
	DocName    string `json:"doc_name"`
	SourceURL  string `json:"source_url,omitempty"`

	Status Status `json:"status"`
	Stage  Stage  `json:"stage"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	data []byte
	text string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksPersisted int      `json:"chunks_persisted"`
	TaggingFailed   bool     `json:"tagging_failed"`
	Errors          []string `json:"errors"`
}

// SetStage records a completed stage.
func (j *Job) SetStage(s Stage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = s
	j.UpdatedAt = time.Now()
}

// SetStatus updates the overall job status.
func (j *Job) SetStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = s
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed and records why. Stage is left at the last
// completed step.
func (j *Job) Fail(reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Progress.Errors = append(j.Progress.Errors, reason)
	j.UpdatedAt = time.Now()
}

// AddError records a non-fatal error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Errors = append(j.Progress.Errors, err)
	j.UpdatedAt = time.Now()
}

// MarkTaggingFailed records that the tagging step failed. The distinction
// from "tagged with nothing found" must survive into job state.
func (j *Job) MarkTaggingFailed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TaggingFailed = true
	j.UpdatedAt = time.Now()
}

// TaggingFailed reports whether tagging failed for this job.
func (j *Job) TaggingFailed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Progress.TaggingFailed
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// SetChunksPersisted records how many chunks reached the store, so a caller
// can resume or delete-and-retry after a partial failure.
func (j *Job) SetChunksPersisted(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksPersisted = n
	j.UpdatedAt = time.Now()
}

// SetData sets the raw payload bytes for extraction.
func (j *Job) SetData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.data = data
}

// Data returns the raw payload bytes.
func (j *Job) Data() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.data
}

// SetText sets pre-extracted plain text, skipping the extraction step.
func (j *Job) SetText(text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.text = text
}

// Text returns pre-extracted plain text, if any.
func (j *Job) Text() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.text
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string   `json:"job_id"`
	DocumentID string   `json:"document_id"`
	UserID     string   `json:"user_id"`
	Status     Status   `json:"status"`
	Stage      Stage    `json:"stage"`
	Progress   Progress `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:         j.ID,
		DocumentID: j.DocumentID,
		UserID:     j.UserID,
		Status:     j.Status,
		Stage:      j.Stage,
		Progress: Progress{
			TotalChunks:     j.Progress.TotalChunks,
			ChunksPersisted: j.Progress.ChunksPersisted,
			TaggingFailed:   j.Progress.TaggingFailed,
			Errors:          errs,
		},
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
