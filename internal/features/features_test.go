package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager(t *testing.T) {
	m := NewManager()
	assert.True(t, m.IsEnabled(FeatureCacheEnabled))
	assert.True(t, m.IsEnabled(FeatureEventHooksEnabled))
	assert.False(t, m.IsEnabled("unknown"))

	m.Apply(map[string]bool{FeatureCacheEnabled: false, "unknown": true})
	assert.False(t, m.IsEnabled(FeatureCacheEnabled))
	assert.False(t, m.IsEnabled("unknown"))

	assert.False(t, m.Set("unknown", true))
	assert.True(t, m.Set(FeatureCacheEnabled, true))
	assert.True(t, m.IsEnabled(FeatureCacheEnabled))

	flags := m.List()
	assert.Len(t, flags, 2)
	assert.Equal(t, FeatureCacheEnabled, flags[0].Name)
}

func TestManager_Nil(t *testing.T) {
	var m *Manager
	assert.False(t, m.IsEnabled(FeatureCacheEnabled))
}
