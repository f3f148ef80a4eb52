package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/compliance-sentinel/sentinel/pipeline"
)

type record struct {
	documentID string
	state      []byte
}

// MemoryStore is an in-process session store. State is kept as marshaled
// JSON so callers never share mutable structures with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*record
}

// NewMemoryStore creates an empty in-process session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*record)}
}

func (s *MemoryStore) Create(_ context.Context, documentID string) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	s.sessions[id] = &record{documentID: documentID}

	return id, nil
}

func (s *MemoryStore) SaveState(_ context.Context, sessionID string, dc *pipeline.Context) error {
	data, err := json.Marshal(dc)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.sessions[sessionID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	rec.state = data

	return nil
}

func (s *MemoryStore) GetState(_ context.Context, sessionID string) (*pipeline.Context, bool, error) {
	s.mu.RLock()
	rec, exists := s.sessions[sessionID]
	var data []byte
	if exists {
		data = rec.state
	}
	s.mu.RUnlock()

	if !exists || data == nil {
		return nil, false, nil
	}

	var dc pipeline.Context
	if err := json.Unmarshal(data, &dc); err != nil {
		return nil, false, fmt.Errorf("unmarshal state: %w", err)
	}

	return &dc, true, nil
}
