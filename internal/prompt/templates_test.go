package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/logging"
	"vigil/internal/risk"
	"vigil/internal/signals"
)

func init() { logging.UseNop() }

func TestLoadPack_MissingFileFallsBackToDefaults(t *testing.T) {
	p, err := LoadPack(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "builtin", p.Version())
	for _, task := range AllTasks {
		assert.NotEmpty(t, p.Template(task), "task %s", task)
	}
}

func TestLoadPack_OverridesLayerOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.yaml")
	raw := `
version: "2024.2"
templates:
  risk_triage: "custom triage {{transcript}}"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	p, err := LoadPack(path)
	require.NoError(t, err)
	assert.Equal(t, "2024.2", p.Version())
	assert.Contains(t, p.Template(TaskRiskTriage), "custom triage")
	// Unoverridden tasks keep the builtin template.
	assert.Contains(t, p.Template(TaskRerank), "7 sections")
}

func TestValidate_EmptyTemplateIsConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.yaml")
	raw := `
templates:
  report: ""
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	_, err := LoadPack(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTemplate)
}

func TestBuild_TotalOverAllTasks(t *testing.T) {
	a := NewAssembler(NewPack())
	for _, task := range AllTasks {
		out := a.Build(task, Inputs{})
		assert.NotEmpty(t, out, "task %s", task)
		assert.NotContains(t, out, "{{", "unresolved placeholder in task %s", task)
	}
}

func TestBuild_MissingOptionalFieldsDegradeToMarker(t *testing.T) {
	a := NewAssembler(NewPack())
	out := a.Build(TaskRiskTriage, Inputs{})
	assert.Contains(t, out, NotAvailable)
}

func TestBuild_SubstitutesSignals(t *testing.T) {
	a := NewAssembler(NewPack())
	in := Inputs{
		Signals: signals.SessionSignals{
			Transcript:             "I have been sleeping badly.",
			HealthDeviationSummary: "Sleep concerning (z=-1.8).",
			VoiceSummary:           "flat, low energy",
		},
		History: "Two prior check-ins, stable at Low.",
		Tier:    risk.TierModerate,
	}
	out := a.Build(TaskRiskTriage, in)
	assert.Contains(t, out, "sleeping badly")
	assert.Contains(t, out, "z=-1.8")
	assert.Contains(t, out, "Two prior check-ins")

	out = a.Build(TaskExplanation, in)
	assert.Contains(t, out, "Moderate")
	assert.Contains(t, out, string(RecipientClinician), "recipient defaults to clinician")
}
