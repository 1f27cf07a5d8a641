package notification

import (
	"context"
	"sync"

	id "gestionale/pkg/domain"
)

// SettingsStore is the external per-event delivery-settings lookup: one
// boolean per (event kind, recipient role, channel). The engine consumes it
// read-only; the settings screens that write it are out of scope here.
type SettingsStore interface {
	Enabled(ctx context.Context, eventKind string, role id.Role, channel Channel) (bool, error)
}

type settingsKey struct {
	event   string
	role    id.Role
	channel Channel
}

// MemorySettings is the in-memory SettingsStore for tests and local runs.
// Unknown pairs default to enabled, matching the postgres store.
type MemorySettings struct {
	mu        sync.RWMutex
	overrides map[settingsKey]bool
}

func NewMemorySettings() *MemorySettings {
	return &MemorySettings{overrides: make(map[settingsKey]bool)}
}

func (s *MemorySettings) Set(eventKind string, role id.Role, channel Channel, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[settingsKey{eventKind, role, channel}] = enabled
}

func (s *MemorySettings) Enabled(_ context.Context, eventKind string, role id.Role, channel Channel) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if enabled, ok := s.overrides[settingsKey{eventKind, role, channel}]; ok {
		return enabled, nil
	}
	return true, nil
}
