package repository

import (
	"context"
	"sync"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

// MemoryStateRepository keeps encoded state in process memory. State is lost on restart.
type MemoryStateRepository struct {
	rootKey string

	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStateRepository constructs an empty in-memory repository.
func NewMemoryStateRepository(rootKey string) *MemoryStateRepository {
	return &MemoryStateRepository{rootKey: rootKey, states: make(map[string][]byte)}
}

// Load implements session.StateRepository.
func (r *MemoryStateRepository) Load(_ context.Context, userID string) (*models.SessionState, error) {
	r.mu.RLock()
	payload, ok := r.states[StateKey(r.rootKey, userID)]
	r.mu.RUnlock()
	if !ok {
		return nil, appErrors.ErrStateNotFound
	}
	return decodeState(payload)
}

// Save implements session.StateRepository.
func (r *MemoryStateRepository) Save(_ context.Context, userID string, state models.SessionState) error {
	payload, err := encodeState(state)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.states[StateKey(r.rootKey, userID)] = payload
	r.mu.Unlock()
	return nil
}
