package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "vigil", cfg.Name)
	assert.Equal(t, 60*time.Second, cfg.Inference.Timeouts.RiskTriage)
	assert.Equal(t, 30*24*time.Hour, cfg.Storage.StalenessWindow)
}

func TestLoad_OverridesLayerOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.yaml")
	raw := `
inference:
  max_tokens: 256
  timeouts:
    safety_plan_rerank: 5s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Inference.MaxTokens)
	assert.Equal(t, 5*time.Second, cfg.Inference.Timeouts.SafetyPlanRerank)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched fields keep defaults.
	assert.Equal(t, "<<END_REPORT>>", cfg.Inference.ReportStopDelimiter)
	assert.Equal(t, 10*time.Minute, cfg.Crisis.RecheckCountdown)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("inference: ["), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
