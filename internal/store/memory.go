package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Store for tests and storeless dev mode.
type Memory struct {
	mu           sync.Mutex
	nextCorpusID int64
	corpora      map[string]Corpus // keyed by userID + "\x00" + corpusKey
	documents    map[string]Document
}

func NewMemory() *Memory {
	return &Memory{
		corpora:   make(map[string]Corpus),
		documents: make(map[string]Document),
	}
}

func (m *Memory) EnsureCorpus(_ context.Context, userID, key string) (Corpus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ck := userID + "\x00" + key
	if c, ok := m.corpora[ck]; ok {
		return c, nil
	}
	m.nextCorpusID++
	c := Corpus{
		ID:        m.nextCorpusID,
		UserID:    userID,
		Key:       key,
		CreatedAt: time.Now(),
	}
	m.corpora[ck] = c
	return c, nil
}

func (m *Memory) UpsertDocument(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.documents[doc.ID]; ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	m.documents[doc.ID] = doc
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.documents[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d, nil
}

func (m *Memory) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[id]; !ok {
		return ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

func (m *Memory) Close() error { return nil }
