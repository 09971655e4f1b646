package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ymori/newsdispatch/internal/digest"
)

// RunStore keeps pipeline results until delivery is confirmed.
type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]digest.PipelineResult
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[uuid.UUID]digest.PipelineResult)}
}

// Save stores or replaces a run result.
func (s *RunStore) Save(_ context.Context, result digest.PipelineResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[result.RunID] = result
	return nil
}

// Get fetches a run result by ID.
func (s *RunStore) Get(_ context.Context, runID uuid.UUID) (digest.PipelineResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.runs[runID]
	if !ok {
		return digest.PipelineResult{}, fmt.Errorf("run %s: %w", runID, digest.ErrRunNotFound)
	}
	return result, nil
}

// MarkLogged moves a ready run into its logged terminal state. Marking an
// already-logged run is a no-op.
func (s *RunStore) MarkLogged(_ context.Context, runID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, digest.ErrRunNotFound)
	}
	if result.State == digest.StateLogged {
		return nil
	}
	if result.State != digest.StateReady {
		return fmt.Errorf("run %s is %s, not ready", runID, result.State)
	}
	result.State = digest.StateLogged
	s.runs[runID] = result
	return nil
}
