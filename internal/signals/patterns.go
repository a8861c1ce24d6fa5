package signals

import (
	"strings"

	"vigil/internal/logging"
	"vigil/internal/risk"
)

// flatPitchVariance is the prosody threshold below which affect is
// considered flat regardless of verbal content.
const flatPitchVariance = 15.0

// shortTranscriptWords marks a transcript as minimally engaged.
const shortTranscriptWords = 8

var positiveMarkers = []string{
	"i'm fine", "im fine", "i am fine", "i'm okay", "i'm ok", "i am okay",
	"doing well", "doing good", "all good", "pretty good", "no problems",
	"nothing's wrong", "nothing is wrong",
}

var distressMarkers = []string{
	"hopeless", "worthless", "can't go on", "cant go on", "give up",
	"no point", "end it", "hurt myself", "kill", "die", "suicide",
	"burden", "alone", "empty", "numb",
}

// DetectPatterns runs the deterministic cross-modal anomaly rules over one
// session's signals. Purely local; never touches the inference backend.
func DetectPatterns(s SessionSignals) []risk.DetectedPattern {
	var patterns []risk.DetectedPattern

	if p, ok := detectMasking(s); ok {
		patterns = append(patterns, p)
	}
	if p, ok := detectAvoidance(s); ok {
		patterns = append(patterns, p)
	}
	patterns = append(patterns, detectBiometricPatterns(s.Deviations)...)

	if len(patterns) > 0 {
		names := make([]string, len(patterns))
		for i, p := range patterns {
			names[i] = string(p.Type)
		}
		logging.Get(logging.CategorySignals).Infow("patterns detected", "patterns", names)
	}
	return patterns
}

// detectMasking flags positive or neutral verbal content delivered with
// flat prosody. Explicit distress language suppresses the flag: the
// subject is not masking if they are saying the distress out loud.
func detectMasking(s SessionSignals) (risk.DetectedPattern, bool) {
	if s.Voice.PitchVariance >= flatPitchVariance || s.Transcript == "" {
		return risk.DetectedPattern{}, false
	}
	lower := strings.ToLower(s.Transcript)
	for _, m := range distressMarkers {
		if strings.Contains(lower, m) {
			return risk.DetectedPattern{}, false
		}
	}
	verballyPositive := false
	for _, m := range positiveMarkers {
		if strings.Contains(lower, m) {
			verballyPositive = true
			break
		}
	}
	if !verballyPositive {
		return risk.DetectedPattern{}, false
	}
	severity := risk.SeverityModerate
	if s.Voice.PitchVariance < flatPitchVariance/2 {
		severity = risk.SeverityMarked
	}
	return risk.DetectedPattern{
		Type:     risk.PatternMasking,
		Severity: severity,
		Source:   "transcript+voice",
	}, true
}

// detectAvoidance flags minimal verbal engagement paired with low
// behavioral engagement.
func detectAvoidance(s SessionSignals) (risk.DetectedPattern, bool) {
	words := len(strings.Fields(s.Transcript))
	if words >= shortTranscriptWords || s.Telemetry.EngagementScore >= 0.3 {
		return risk.DetectedPattern{}, false
	}
	return risk.DetectedPattern{
		Type:     risk.PatternAvoidance,
		Severity: risk.SeverityModerate,
		Source:   "transcript+telemetry",
	}, true
}

func detectBiometricPatterns(d HealthDeviations) []risk.DetectedPattern {
	if !d.Available {
		return nil
	}
	grade := func(z float64) risk.PatternSeverity {
		if abs(z) > ZSignificant {
			return risk.SeverityMarked
		}
		return risk.SeverityModerate
	}
	var out []risk.DetectedPattern
	if abs(d.SleepZ) > ZConcerning {
		out = append(out, risk.DetectedPattern{
			Type: risk.PatternSleepDisruption, Severity: grade(d.SleepZ), Source: "health:sleep",
		})
	}
	if d.ActivityZ < -ZConcerning {
		out = append(out, risk.DetectedPattern{
			Type: risk.PatternActivityCollapse, Severity: grade(d.ActivityZ), Source: "health:activity",
		})
	}
	if d.HRVZ < -ZConcerning {
		out = append(out, risk.DetectedPattern{
			Type: risk.PatternHRVDepression, Severity: grade(d.HRVZ), Source: "health:hrv",
		})
	}
	return out
}

// InferPrimaryDriver attributes the current risk level to the single most
// responsible data source. Questionnaire positives dominate when the floor
// is elevated; otherwise the largest biometric deviation wins; multiple
// near-equal contributors report combined.
func InferPrimaryDriver(s SessionSignals, floor risk.Tier) risk.PrimaryDriver {
	if floor >= risk.TierModerate {
		return risk.DriverQuestionnaire
	}

	type contribution struct {
		driver risk.PrimaryDriver
		weight float64
	}
	contribs := []contribution{
		{risk.DriverSleep, abs(s.Deviations.SleepZ)},
		{risk.DriverActivity, abs(s.Deviations.ActivityZ)},
		{risk.DriverHRV, abs(s.Deviations.HRVZ)},
	}

	var best, second contribution
	for _, c := range contribs {
		switch {
		case c.weight > best.weight:
			second = best
			best = c
		case c.weight > second.weight:
			second = c
		}
	}

	if best.weight <= ZConcerning {
		// No biometric driver; flat prosody or detected patterns point at mood.
		if s.Voice.PitchVariance > 0 && s.Voice.PitchVariance < flatPitchVariance {
			return risk.DriverMood
		}
		return risk.DriverCombined
	}
	if second.weight > ZConcerning && best.weight-second.weight < 0.5 {
		return risk.DriverCombined
	}
	return best.driver
}
