package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ymori/newsdispatch/internal/digest"
)

// ConfigStore is an in-memory search configuration catalog.
type ConfigStore struct {
	mu      sync.RWMutex
	configs map[uuid.UUID]digest.SearchConfig
}

// NewConfigStore constructs a ConfigStore.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{configs: make(map[uuid.UUID]digest.SearchConfig)}
}

// Put stores or replaces a configuration.
func (s *ConfigStore) Put(cfg digest.SearchConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ID] = cfg
}

// Get loads one configuration by ID.
func (s *ConfigStore) Get(_ context.Context, id uuid.UUID) (digest.SearchConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[id]
	if !ok {
		return digest.SearchConfig{}, fmt.Errorf("config %s: %w", id, digest.ErrConfigNotFound)
	}
	return cfg, nil
}

// ListAutoSend returns every configuration enrolled in scheduled batch runs,
// ordered by name for stable batch traversal.
func (s *ConfigStore) ListAutoSend(_ context.Context) ([]digest.SearchConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var configs []digest.SearchConfig
	for _, cfg := range s.configs {
		if cfg.AutoSend {
			configs = append(configs, cfg)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs, nil
}
