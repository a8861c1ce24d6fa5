package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/logging"
	"vigil/internal/risk"
)

func init() { logging.UseNop() }

func hasPattern(ps []risk.DetectedPattern, t risk.PatternType) bool {
	for _, p := range ps {
		if p.Type == t {
			return true
		}
	}
	return false
}

func TestDetectMasking_PositiveWordsFlatProsody(t *testing.T) {
	s := SessionSignals{
		Transcript: "I'm fine, really, everything is going well.",
		Voice:      VoiceFeatures{PitchVariance: 9.2},
	}
	ps := DetectPatterns(s)
	require.True(t, hasPattern(ps, risk.PatternMasking))
}

func TestDetectMasking_SuppressedByExplicitDistress(t *testing.T) {
	s := SessionSignals{
		Transcript: "I'm fine... honestly I feel hopeless most days.",
		Voice:      VoiceFeatures{PitchVariance: 9.2},
	}
	assert.False(t, hasPattern(DetectPatterns(s), risk.PatternMasking))
}

func TestDetectMasking_NormalProsodyNotFlagged(t *testing.T) {
	s := SessionSignals{
		Transcript: "I'm fine, things are going well.",
		Voice:      VoiceFeatures{PitchVariance: 42.0},
	}
	assert.False(t, hasPattern(DetectPatterns(s), risk.PatternMasking))
}

func TestDetectAvoidance(t *testing.T) {
	s := SessionSignals{
		Transcript: "Nothing to say.",
		Telemetry:  TelemetryFeatures{EngagementScore: 0.1},
	}
	assert.True(t, hasPattern(DetectPatterns(s), risk.PatternAvoidance))
}

func TestBiometricPatterns(t *testing.T) {
	d := HealthDeviations{SleepZ: -2.3, ActivityZ: -1.8, HRVZ: 0.2, Available: true}
	ps := detectBiometricPatterns(d)
	require.Len(t, ps, 2)
	assert.True(t, hasPattern(ps, risk.PatternSleepDisruption))
	assert.True(t, hasPattern(ps, risk.PatternActivityCollapse))
	// Marked severity past the significant threshold.
	for _, p := range ps {
		if p.Type == risk.PatternSleepDisruption {
			assert.Equal(t, risk.SeverityMarked, p.Severity)
		}
	}

	assert.Empty(t, detectBiometricPatterns(HealthDeviations{SleepZ: -3}), "unavailable data yields no patterns")
}

func TestInferPrimaryDriver(t *testing.T) {
	tests := []struct {
		name  string
		s     SessionSignals
		floor risk.Tier
		want  risk.PrimaryDriver
	}{
		{
			"elevated floor dominates",
			SessionSignals{Deviations: HealthDeviations{SleepZ: -3, Available: true}},
			risk.TierModerate,
			risk.DriverQuestionnaire,
		},
		{
			"largest deviation wins",
			SessionSignals{Deviations: HealthDeviations{SleepZ: -2.5, ActivityZ: -0.3, Available: true}},
			risk.TierLow,
			risk.DriverSleep,
		},
		{
			"near-equal contributors combine",
			SessionSignals{Deviations: HealthDeviations{SleepZ: -2.1, HRVZ: -2.0, Available: true}},
			risk.TierLow,
			risk.DriverCombined,
		},
		{
			"flat prosody without biometrics is mood",
			SessionSignals{Voice: VoiceFeatures{PitchVariance: 8}},
			risk.TierLow,
			risk.DriverMood,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferPrimaryDriver(tt.s, tt.floor))
		})
	}
}

func TestHealthMetricZ(t *testing.T) {
	m := HealthMetric{Today: 4.0, BaselineMean: 7.0, BaselineStd: 1.5}
	assert.InDelta(t, -2.0, m.Z(), 1e-9)
	assert.Zero(t, HealthMetric{Today: 5, BaselineMean: 7}.Z(), "degenerate baseline reads as no deviation")
}

type slowProvider struct{ delay time.Duration }

func (p slowProvider) Snapshot(ctx context.Context) (HealthData, error) {
	select {
	case <-time.After(p.delay):
		return HealthData{SleepHours: HealthMetric{Today: 4, BaselineMean: 7, BaselineStd: 1}}, nil
	case <-ctx.Done():
		return HealthData{}, ctx.Err()
	}
}

type failingProvider struct{}

func (failingProvider) Snapshot(context.Context) (HealthData, error) {
	return HealthData{}, errors.New("platform unavailable")
}

func TestFetchDeviations_TimeoutDegradesToDefaults(t *testing.T) {
	d := FetchDeviations(context.Background(), slowProvider{delay: time.Second}, 20*time.Millisecond)
	assert.False(t, d.Available)
	assert.Zero(t, d.SleepZ)
}

func TestFetchDeviations_ErrorDegradesToDefaults(t *testing.T) {
	d := FetchDeviations(context.Background(), failingProvider{}, time.Second)
	assert.False(t, d.Available)
}

func TestFetchDeviations_Success(t *testing.T) {
	d := FetchDeviations(context.Background(), slowProvider{delay: time.Millisecond}, time.Second)
	require.True(t, d.Available)
	assert.InDelta(t, -3.0, d.SleepZ, 1e-9)
}

func TestDeviationsSummary(t *testing.T) {
	assert.Equal(t, "Biometric data not available for this session.", HealthDeviations{}.Summary())

	s := HealthDeviations{SleepZ: -2.4, ActivityZ: -1.7, HRVZ: 0.1, Available: true}.Summary()
	assert.Contains(t, s, "Sleep significantly deviated")
	assert.Contains(t, s, "Activity concerning")
	assert.Contains(t, s, "HRV near baseline")
}
