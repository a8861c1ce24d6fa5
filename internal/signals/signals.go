// Package signals defines the per-session multimodal input surface and
// the deterministic analysis that runs over it: health z-score deviations,
// cross-modal pattern detection, and primary-driver attribution.
//
// Capture and low-level feature extraction happen in external
// collaborators; this package consumes their pre-computed summaries.
package signals

import (
	"fmt"
	"strings"

	"vigil/internal/questionnaire"
)

// VoiceFeatures summarizes prosody for one session.
type VoiceFeatures struct {
	PitchVariance  float64 // Hz^2; flat affect presents under ~15
	EnergyVariance float64
	SpeechRate     float64 // words per minute
}

// TelemetryFeatures summarizes facial/behavioral telemetry.
type TelemetryFeatures struct {
	EyeOpenness     float64 // 0..1
	GazeStability   float64 // 0..1
	EngagementScore float64 // 0..1
}

// SessionSignals aggregates every input for one assessment. Built once
// per check-in and treated as immutable once handed to the assembler.
type SessionSignals struct {
	Transcript             string
	VoiceSummary           string
	TelemetrySummary       string
	HealthDeviationSummary string

	Voice      VoiceFeatures
	Telemetry  TelemetryFeatures
	Deviations HealthDeviations

	Questionnaire questionnaire.Answers
}

// HealthDeviations carries z-scores of today's biometrics against the
// subject's 30-day baseline. Zero values mean "at baseline" and are also
// the degraded result when the health fetch times out.
type HealthDeviations struct {
	SleepZ    float64
	ActivityZ float64
	HRVZ      float64
	// Available is false when the biometric fetch failed or timed out
	// and the zeros above are defaults rather than measurements.
	Available bool
}

// Concerning and significant deviation thresholds, in baseline
// standard deviations.
const (
	ZConcerning  = 1.5
	ZSignificant = 2.0
)

// AnyConcerning reports whether any metric deviates past the concerning
// threshold.
func (d HealthDeviations) AnyConcerning() bool {
	return abs(d.SleepZ) > ZConcerning || abs(d.ActivityZ) > ZConcerning || abs(d.HRVZ) > ZConcerning
}

// AnySignificant reports whether any metric deviates past the significant
// threshold.
func (d HealthDeviations) AnySignificant() bool {
	return abs(d.SleepZ) > ZSignificant || abs(d.ActivityZ) > ZSignificant || abs(d.HRVZ) > ZSignificant
}

// Summary renders the deviation summary fed into prompts. Degrades to an
// explicit marker when biometrics were unavailable.
func (d HealthDeviations) Summary() string {
	if !d.Available {
		return "Biometric data not available for this session."
	}
	describe := func(name string, z float64) string {
		switch {
		case abs(z) > ZSignificant:
			return fmt.Sprintf("%s significantly deviated (z=%+.1f)", name, z)
		case abs(z) > ZConcerning:
			return fmt.Sprintf("%s concerning (z=%+.1f)", name, z)
		default:
			return fmt.Sprintf("%s near baseline (z=%+.1f)", name, z)
		}
	}
	parts := []string{
		describe("Sleep", d.SleepZ),
		describe("Activity", d.ActivityZ),
		describe("HRV", d.HRVZ),
	}
	return strings.Join(parts, "; ") + "."
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
