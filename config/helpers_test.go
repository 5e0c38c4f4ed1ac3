package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serviceSection mimics what a service sees after decoding its RawMessage.
func serviceSection(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestConfigMapHelpers(t *testing.T) {
	cfg := serviceSection(t, `{
		"subject": "intellilab.gc.v1.simulate",
		"workers": 4,
		"timeout_sec": 2.5,
		"persist": true,
		"matrices": ["petroleum", "diesel"]
	}`)

	assert.Equal(t, "intellilab.gc.v1.simulate", GetString(cfg, "subject", "fallback"))
	assert.Equal(t, "fallback", GetString(cfg, "missing", "fallback"))
	assert.Equal(t, "fallback", GetString(cfg, "workers", "fallback"), "non-string value falls back")

	// JSON numbers arrive as float64 and still read as ints
	assert.Equal(t, 4, GetInt(cfg, "workers", 1))
	assert.Equal(t, 1, GetInt(cfg, "missing", 1))

	assert.InDelta(t, 2.5, GetFloat64(cfg, "timeout_sec", 0), 1e-9)
	assert.InDelta(t, 4.0, GetFloat64(cfg, "workers", 0), 1e-9)

	assert.True(t, GetBool(cfg, "persist", false))
	assert.False(t, GetBool(cfg, "missing", false))

	assert.Equal(t, []string{"petroleum", "diesel"}, GetStringSlice(cfg, "matrices", nil))
	assert.Nil(t, GetStringSlice(cfg, "missing", nil))

	assert.True(t, HasKey(cfg, "workers"))
	assert.False(t, HasKey(cfg, "missing"))
}

func TestGetStringSlice_MixedTypes(t *testing.T) {
	cfg := serviceSection(t, `{"matrices": ["petroleum", 7]}`)

	// A partially-string array is rejected rather than silently truncated
	assert.Equal(t, []string{"fallback"}, GetStringSlice(cfg, "matrices", []string{"fallback"}))
}
