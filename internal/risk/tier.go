// Package risk defines the clinical risk vocabulary shared across the
// engine: the ordered severity tiers, detected cross-modal patterns, the
// primary-driver classification, and the floor/model tier combiner.
package risk

import "fmt"

// Tier is the ordered clinical severity classification.
// The ordering is fixed: Low < Moderate < HighMonitoring < Crisis.
// It is never inferred dynamically.
type Tier int

const (
	TierLow Tier = iota
	TierModerate
	TierHighMonitoring
	TierCrisis
)

// String returns the canonical color word used in prompts and model output.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "GREEN"
	case TierModerate:
		return "YELLOW"
	case TierHighMonitoring:
		return "ORANGE"
	case TierCrisis:
		return "RED"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Label returns the human-readable tier name for reports and logs.
func (t Tier) Label() string {
	switch t {
	case TierLow:
		return "Low"
	case TierModerate:
		return "Moderate"
	case TierHighMonitoring:
		return "High Monitoring"
	case TierCrisis:
		return "Crisis"
	default:
		return "Unknown"
	}
}

// AtLeast reports whether t is at or above other in severity.
func (t Tier) AtLeast(other Tier) bool { return t >= other }

// Max returns the more severe of two tiers.
func Max(a, b Tier) Tier {
	if a >= b {
		return a
	}
	return b
}

// Trajectory describes tier movement between consecutive check-ins.
type Trajectory string

const (
	TrajectoryStable    Trajectory = "stable"
	TrajectoryImproving Trajectory = "improving"
	TrajectoryWorsening Trajectory = "worsening"
)

// TrajectoryOf is the pure function from consecutive tiers to trajectory.
// It is the only place trajectory is ever computed.
func TrajectoryOf(previous, current Tier) Trajectory {
	switch {
	case current > previous:
		return TrajectoryWorsening
	case current < previous:
		return TrajectoryImproving
	default:
		return TrajectoryStable
	}
}

// PrimaryDriver names the single data source judged most responsible for
// the current risk level. Used to key fallback rerank orders.
type PrimaryDriver string

const (
	DriverSleep         PrimaryDriver = "sleep"
	DriverActivity      PrimaryDriver = "activity"
	DriverHRV           PrimaryDriver = "hrv"
	DriverMood          PrimaryDriver = "mood"
	DriverQuestionnaire PrimaryDriver = "questionnaire"
	DriverCombined      PrimaryDriver = "combined"
)

// PatternType names a cross-modal anomaly detected within one session.
type PatternType string

const (
	PatternMasking          PatternType = "MASKING"
	PatternAvoidance        PatternType = "AVOIDANCE"
	PatternSleepDisruption  PatternType = "SLEEP_DISRUPTION"
	PatternActivityCollapse PatternType = "ACTIVITY_COLLAPSE"
	PatternHRVDepression    PatternType = "HRV_DEPRESSION"
)

// PatternSeverity grades how strongly a pattern presented.
type PatternSeverity string

const (
	SeverityMild     PatternSeverity = "mild"
	SeverityModerate PatternSeverity = "moderate"
	SeverityMarked   PatternSeverity = "marked"
)

// DetectedPattern is a named cross-modal anomaly produced per session.
// The latest set is cached in LongitudinalState for reranking.
type DetectedPattern struct {
	Type     PatternType     `json:"type"`
	Severity PatternSeverity `json:"severity"`
	Source   string          `json:"source"` // which signals triggered it
}
