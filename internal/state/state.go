// Package state holds the compressed cross-session clinical memory and
// its SQLite-backed store. The state is small - one row - but it is the
// only thing the engine remembers between sessions, so writes are atomic
// and staleness is enforced at load time: memory older than the inactivity
// window reads as absent, never as stale-but-present.
package state

import (
	"time"

	"vigil/internal/risk"
)

// LongitudinalState is the compressed cross-session memory.
type LongitudinalState struct {
	LastUpdated  time.Time          `json:"last_updated"`
	CheckInCount int                `json:"check_in_count"`
	Trajectory   risk.Trajectory    `json:"trajectory"`
	Driver       risk.PrimaryDriver `json:"primary_driver"`
	LastRiskTier risk.Tier          `json:"last_risk_tier"`

	// RecentCrisisCount is the rolling crisis-frequency counter supplied
	// by the crisis archive at update time.
	RecentCrisisCount int `json:"recent_crisis_count"`

	// LastCrisisAt is nil when no crisis has ever been recorded.
	LastCrisisAt *time.Time `json:"last_crisis_at,omitempty"`

	// Narrative is the model-compressed free-text history. The store
	// persists whatever the caller supplies; on compression failure the
	// caller passes the previous narrative through unchanged.
	Narrative string `json:"narrative"`

	// LastPatterns caches the most recent detected-pattern set for
	// reranking.
	LastPatterns []risk.DetectedPattern `json:"last_patterns,omitempty"`
}

// DaysSinceLastCrisis returns whole days since the last crisis episode,
// or -1 when none is on record.
func (s *LongitudinalState) DaysSinceLastCrisis(now time.Time) int {
	if s == nil || s.LastCrisisAt == nil {
		return -1
	}
	return int(now.Sub(*s.LastCrisisAt).Hours() / 24)
}

// UpdateInputs carries one session's outcome into the state fold.
type UpdateInputs struct {
	Tier              risk.Tier
	Driver            risk.PrimaryDriver
	Patterns          []risk.DetectedPattern
	Narrative         string
	RecentCrisisCount int
	Now               time.Time
}

// Update folds a session outcome into the previous state. Pure: the
// trajectory is recomputed from the previous tier and nothing else, and
// previous is never mutated. A nil previous starts a fresh history, and
// so does ingestion-seeded state (narrative present but zero check-ins):
// a document summary carries no assessed tier to compare against.
func Update(previous *LongitudinalState, in UpdateInputs) LongitudinalState {
	next := LongitudinalState{
		LastUpdated:       in.Now,
		CheckInCount:      1,
		Trajectory:        risk.TrajectoryStable,
		Driver:            in.Driver,
		LastRiskTier:      in.Tier,
		RecentCrisisCount: in.RecentCrisisCount,
		Narrative:         in.Narrative,
		LastPatterns:      append([]risk.DetectedPattern(nil), in.Patterns...),
	}
	if previous != nil {
		next.CheckInCount = previous.CheckInCount + 1
		next.LastCrisisAt = previous.LastCrisisAt
		if previous.CheckInCount > 0 {
			next.Trajectory = risk.TrajectoryOf(previous.LastRiskTier, in.Tier)
		}
	}
	if in.Tier == risk.TierCrisis {
		t := in.Now
		next.LastCrisisAt = &t
	}
	return next
}

// IsStale reports whether persisted state has aged past the inactivity
// window and must be treated as absent.
func (s *LongitudinalState) IsStale(now time.Time, window time.Duration) bool {
	return s != nil && now.Sub(s.LastUpdated) > window
}
