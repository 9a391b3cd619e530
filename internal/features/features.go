package features

import (
	"sort"
	"sync"
)

// Flag names
const (
	// FeatureCacheEnabled serves upstream directory reads through the cache layer
	FeatureCacheEnabled = "cache_enabled"
	// FeatureEventHooksEnabled delivers domain events to subscribers
	FeatureEventHooksEnabled = "event_hooks_enabled"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager manages feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates a manager with the built-in flags registered.
func NewManager() *Manager {
	m := &Manager{flags: make(map[string]*FeatureFlag)}
	m.Register(FeatureCacheEnabled, true, "serve categories, markets and market details through the cache")
	m.Register(FeatureEventHooksEnabled, true, "deliver domain events to subscribers")
	return m
}

// Register registers a new feature flag or replaces an existing one.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled checks if a feature flag is enabled. Unknown flags are disabled.
func (m *Manager) IsEnabled(name string) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	return exists && flag.Enabled
}

// Set toggles a registered flag. It reports whether the flag exists.
func (m *Manager) Set(name string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag, exists := m.flags[name]
	if exists {
		flag.Enabled = enabled
	}
	return exists
}

// Apply toggles every registered flag named in overrides.
func (m *Manager) Apply(overrides map[string]bool) {
	for name, enabled := range overrides {
		m.Set(name, enabled)
	}
}

// List returns a copy of all flags ordered by name.
func (m *Manager) List() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FeatureFlag, 0, len(m.flags))
	for _, v := range m.flags {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
