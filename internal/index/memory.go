package index

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// Memory is a brute-force in-memory Index. It backs tests and storeless dev
// mode and implements the same cosine-distance contract as Postgres.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	chunks map[int64]Chunk
}

func NewMemory() *Memory {
	return &Memory{chunks: make(map[int64]Chunk)}
}

func (m *Memory) Store(_ context.Context, chunk Chunk) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.chunks {
		if existing.DocumentID == chunk.DocumentID && existing.Index == chunk.Index {
			return 0, ErrDuplicateChunk
		}
	}

	m.nextID++
	chunk.ID = m.nextID
	now := time.Now()
	chunk.CreatedAt = now
	chunk.UpdatedAt = now
	m.chunks[chunk.ID] = chunk
	return chunk.ID, nil
}

func (m *Memory) Search(_ context.Context, vector []float32, limit int, maxDistance float64) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.chunks))
	for _, c := range m.chunks {
		d := cosineDistance(vector, c.Embedding)
		if d > maxDistance {
			continue
		}
		matches = append(matches, Match{Chunk: c, Distance: d})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *Memory) Get(_ context.Context, id int64) (Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chunks[id]
	if !ok {
		return Chunk{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) Update(_ context.Context, id int64, text string, vector []float32, metadata map[string]any) (Chunk, error) {
	if text == "" || len(vector) == 0 {
		return Chunk{}, ErrTextWithoutVector
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chunks[id]
	if !ok {
		return Chunk{}, ErrNotFound
	}
	c.Text = text
	c.Embedding = vector
	if metadata != nil {
		c.Metadata = metadata
	}
	c.UpdatedAt = time.Now()
	m.chunks[id] = c
	return c, nil
}

func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chunks[id]; !ok {
		return ErrNotFound
	}
	delete(m.chunks, id)
	return nil
}

func (m *Memory) DeleteDocument(_ context.Context, documentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, c := range m.chunks {
		if c.DocumentID == documentID {
			delete(m.chunks, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }

// cosineDistance is 1 - cosine similarity. Degenerate zero vectors are
// treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
