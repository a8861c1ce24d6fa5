// Package session runs the end-to-end check-in pipeline: questionnaire
// floor, collaborator fetch, pattern detection, model triage, tier
// combination, history compression, persistence, and crisis dispatch.
// Every model task degrades to its deterministic fallback, so a check-in
// always produces a determinate result.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/internal/config"
	"vigil/internal/crisis"
	"vigil/internal/inference"
	"vigil/internal/logging"
	"vigil/internal/prompt"
	"vigil/internal/questionnaire"
	"vigil/internal/risk"
	"vigil/internal/signals"
	"vigil/internal/state"
)

// TaskOutcome is the provenance record for one model task: whether the
// final text came from the model or the deterministic fallback, and which
// parse strategy claimed it.
type TaskOutcome struct {
	Task        prompt.TaskType
	UsedModel   bool
	ParseMethod string
	Latency     time.Duration
}

// CheckInInputs is everything captured during one session.
type CheckInInputs struct {
	Transcript   string
	Voice        signals.VoiceFeatures
	VoiceSummary string
	Answers      questionnaire.Answers
}

// CheckInResult is the full outcome of one check-in.
type CheckInResult struct {
	CheckInID string

	FloorTier   risk.Tier
	ModelTier   risk.Tier
	FinalTier   risk.Tier
	Source      string
	Explanation string

	Driver     risk.PrimaryDriver
	Patterns   []risk.DetectedPattern
	Trajectory risk.Trajectory
	Narrative  string

	SafetyPlanOrder []int

	// Crisis is non-nil when the final tier opened (or rejoined) a
	// crisis session.
	Crisis *crisis.Session

	Outcomes []TaskOutcome
}

// Orchestrator wires the engine components behind one check-in entry
// point. It owns no state of its own; everything durable lives in the
// store and the crisis machine.
type Orchestrator struct {
	cfg       *config.Config
	assembler *prompt.Assembler
	exec      *inference.Executor
	store     *state.Store
	crisis    *crisis.Machine
	health    signals.HealthProvider
	telemetry signals.TelemetryProvider
	now       func() time.Time
}

// NewOrchestrator assembles the pipeline. health and telemetry may be nil;
// their inputs then degrade to explicit "not available" markers.
func NewOrchestrator(
	cfg *config.Config,
	assembler *prompt.Assembler,
	exec *inference.Executor,
	store *state.Store,
	machine *crisis.Machine,
	health signals.HealthProvider,
	telemetry signals.TelemetryProvider,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		assembler: assembler,
		exec:      exec,
		store:     store,
		crisis:    machine,
		health:    health,
		telemetry: telemetry,
		now:       time.Now,
	}
}

// Crisis exposes the crisis machine for recheck responses and dismissal.
func (o *Orchestrator) Crisis() *crisis.Machine { return o.crisis }

// RunCheckIn executes one complete check-in. It returns an error only on
// persistence failure; model unavailability and parse failures degrade to
// fallbacks and are recorded in the outcome provenance.
func (o *Orchestrator) RunCheckIn(ctx context.Context, in CheckInInputs) (*CheckInResult, error) {
	log := logging.Get(logging.CategorySession)
	now := o.now()
	res := &CheckInResult{CheckInID: uuid.NewString()}

	// Deterministic floor first: it can only be raised from here on.
	res.FloorTier = questionnaire.ComputeFloorTier(in.Answers)

	collab := signals.FetchCollaborators(ctx, o.health, o.telemetry, o.cfg.Inference.Timeouts.HealthFetch)
	sig := signals.SessionSignals{
		Transcript:             in.Transcript,
		VoiceSummary:           in.VoiceSummary,
		TelemetrySummary:       collab.TelemetrySummary,
		HealthDeviationSummary: collab.Deviations.Summary(),
		Voice:                  in.Voice,
		Telemetry:              collab.Telemetry,
		Deviations:             collab.Deviations,
		Questionnaire:          in.Answers,
	}

	res.Patterns = signals.DetectPatterns(sig)
	res.Driver = signals.InferPrimaryDriver(sig, res.FloorTier)

	prev, err := o.store.Load(now, o.cfg.Storage.StalenessWindow)
	if err != nil {
		return nil, fmt.Errorf("load longitudinal state: %w", err)
	}
	history := ""
	if prev != nil {
		history = prev.Narrative
	}

	// Model triage, streamed and cut after tier word + rationale line.
	modelTier, rationale, outcome := o.triage(ctx, sig, history, res.FloorTier, in.Answers)
	res.ModelTier = modelTier
	res.Outcomes = append(res.Outcomes, outcome)

	combined := risk.Combine(res.FloorTier, res.ModelTier, rationale)
	res.FinalTier = combined.Final
	res.Source = combined.Source
	res.Explanation = combined.Explanation

	if res.FinalTier == risk.TierCrisis {
		res.Crisis = o.crisis.NotifyCrisisTier()
	}

	res.SafetyPlanOrder = o.rerank(ctx, sig, history, res)

	res.Narrative = o.compress(ctx, sig, history, res)

	crisisCount, err := o.store.CrisisCountSince(now, o.cfg.Crisis.FrequencyWindow)
	if err != nil {
		log.Warnw("crisis count unavailable", "error", err)
	}

	next := state.Update(prev, state.UpdateInputs{
		Tier:              res.FinalTier,
		Driver:            res.Driver,
		Patterns:          res.Patterns,
		Narrative:         res.Narrative,
		RecentCrisisCount: crisisCount,
		Now:               now,
	})
	res.Trajectory = next.Trajectory
	if err := o.store.Save(next); err != nil {
		return nil, fmt.Errorf("persist longitudinal state: %w", err)
	}

	o.audit(res)
	log.Infow("check-in complete",
		"checkin", res.CheckInID,
		"floor", res.FloorTier.String(),
		"model", res.ModelTier.String(),
		"final", res.FinalTier.String(),
		"source", res.Source,
		"driver", res.Driver,
		"patterns", len(res.Patterns))
	return res, nil
}

func (o *Orchestrator) audit(res *CheckInResult) {
	for _, out := range res.Outcomes {
		entry := state.AuditEntry{
			CheckInID:   res.CheckInID,
			Task:        string(out.Task),
			UsedModel:   out.UsedModel,
			ParseMethod: out.ParseMethod,
			Latency:     out.Latency,
		}
		if out.Task == prompt.TaskRiskTriage {
			entry.Tier = res.FinalTier.String()
		}
		if err := o.store.AppendAudit(entry); err != nil {
			logging.Get(logging.CategorySession).Warnw("audit append failed", "error", err)
		}
	}
}
