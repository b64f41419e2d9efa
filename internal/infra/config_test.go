package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Без файла и ENV конфиг собирается на дефолтах.
func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Engine.TokenThreshold)
	assert.True(t, cfg.Engine.EnableFailover)
	assert.Equal(t, 5000, cfg.Engine.FailoverTimeoutMs)
	assert.InDelta(t, 0.01, cfg.Engine.CloudFailureProbability, 1e-9)
	assert.InDelta(t, 0.05, cfg.Engine.LocalFailureProbability, 1e-9)
	assert.Equal(t, "openai", cfg.Processors.CloudProvider)
	assert.Equal(t, "http://localhost:11434", cfg.Processors.OllamaURL)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENGINE_TOKEN_THRESHOLD", "1000")
	t.Setenv("PROCESSORS_CLOUD_PROVIDER", "groq")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Engine.TokenThreshold)
	assert.Equal(t, "groq", cfg.Processors.CloudProvider)
}
