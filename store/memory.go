package store

import (
	"context"
	"sync"

	"callbridge/models"
)

// Memory is an in-process ConfigStore. It is used by tests and by dev
// setups that seed routes at boot and never share them across processes.
type Memory struct {
	mu     sync.RWMutex
	routes map[string]models.RouteConfig
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{routes: make(map[string]models.RouteConfig)}
}

func (m *Memory) Get(_ context.Context, key string) (models.RouteConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.routes[key]
	if !ok {
		return models.RouteConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (m *Memory) Put(_ context.Context, key string, cfg models.RouteConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[key] = cfg
	return nil
}

func (m *Memory) Close() error {
	return nil
}
