package signals

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/logging"
)

// HealthMetric is one biometric reading with its 30-day baseline.
type HealthMetric struct {
	Today        float64
	BaselineMean float64
	BaselineStd  float64
}

// Z returns today's deviation from baseline in standard deviations.
// A degenerate baseline (std 0) reads as no deviation.
func (m HealthMetric) Z() float64 {
	if m.BaselineStd == 0 {
		return 0
	}
	return (m.Today - m.BaselineMean) / m.BaselineStd
}

// HealthData is the snapshot consumed from the biometric platform.
type HealthData struct {
	SleepHours HealthMetric
	ActiveMins HealthMetric
	HRVms      HealthMetric
}

// Deviations converts the snapshot into z-scores.
func (h HealthData) Deviations() HealthDeviations {
	return HealthDeviations{
		SleepZ:    h.SleepHours.Z(),
		ActivityZ: h.ActiveMins.Z(),
		HRVZ:      h.HRVms.Z(),
		Available: true,
	}
}

// HealthProvider is the biometric platform collaborator. Implementations
// may be slow or unavailable; callers wrap them with FetchDeviations.
type HealthProvider interface {
	Snapshot(ctx context.Context) (HealthData, error)
}

// TelemetryProvider supplies the behavioral telemetry summary.
type TelemetryProvider interface {
	Features(ctx context.Context) (TelemetryFeatures, string, error)
}

// FetchDeviations queries the health provider under its own short budget.
// A failed or slow fetch degrades to zero deviations with Available=false;
// it never fails the session pipeline.
func FetchDeviations(ctx context.Context, p HealthProvider, timeout time.Duration) HealthDeviations {
	if p == nil {
		return HealthDeviations{}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snap, err := p.Snapshot(ctx)
	if err != nil {
		logging.Get(logging.CategorySignals).Warnw("health fetch degraded to defaults", "error", err)
		return HealthDeviations{}
	}
	return snap.Deviations()
}

// CollaboratorInputs is the result of the parallel collaborator fetch.
type CollaboratorInputs struct {
	Deviations HealthDeviations
	Telemetry  TelemetryFeatures
	// TelemetrySummary is empty when the telemetry fetch degraded.
	TelemetrySummary string
}

// FetchCollaborators queries health and telemetry concurrently, each under
// the same short budget. Either side degrading leaves its defaults in
// place; the group never returns an error to the caller.
func FetchCollaborators(ctx context.Context, hp HealthProvider, tp TelemetryProvider, timeout time.Duration) CollaboratorInputs {
	var out CollaboratorInputs
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out.Deviations = FetchDeviations(gctx, hp, timeout)
		return nil
	})
	g.Go(func() error {
		if tp == nil {
			return nil
		}
		tctx, cancel := context.WithTimeout(gctx, timeout)
		defer cancel()
		feats, summary, err := tp.Features(tctx)
		if err != nil {
			logging.Get(logging.CategorySignals).Warnw("telemetry fetch degraded to defaults", "error", err)
			return nil
		}
		out.Telemetry = feats
		out.TelemetrySummary = summary
		return nil
	})
	_ = g.Wait() // goroutines only ever return nil
	return out
}
