package session

import (
	"context"
	"strings"

	"vigil/internal/fallback"
	"vigil/internal/inference"
	"vigil/internal/logging"
	"vigil/internal/parser"
	"vigil/internal/prompt"
	"vigil/internal/questionnaire"
	"vigil/internal/risk"
	"vigil/internal/signals"
	"vigil/internal/state"
)

// methodFallback marks an outcome whose text came from the deterministic
// generator, whether because the backend failed or because no parse
// strategy claimed the model output.
const methodFallback = "fallback"

// triage runs the model classification and parses the tier. Any failure
// path lands on the deterministic triage, which can never lower the floor.
func (o *Orchestrator) triage(ctx context.Context, sig signals.SessionSignals, history string, floor risk.Tier, answers questionnaire.Answers) (risk.Tier, string, TaskOutcome) {
	log := logging.Get(logging.CategorySession)
	p := o.assembler.Build(prompt.TaskRiskTriage, prompt.Inputs{
		Signals: sig,
		History: history,
		Tier:    floor,
	})

	// The template asks for exactly two lines; cut the stream there.
	mode := inference.StreamUntilDelimiters([]string{"\n"}, 2, o.cfg.Inference.MaxTokens)
	run, err := o.exec.Run(ctx, p, o.cfg.Inference.Timeouts.RiskTriage, mode)
	if err != nil {
		log.Warnw("triage degraded to deterministic fallback", "error", err)
		tier, rationale := fallback.Triage(answers, sig.Deviations)
		return tier, rationale, TaskOutcome{Task: prompt.TaskRiskTriage, ParseMethod: methodFallback}
	}

	parsed, err := parser.ParseTier(run.Text)
	if err != nil {
		log.Warnw("triage output unparsable, using deterministic fallback", "error", err)
		tier, rationale := fallback.Triage(answers, sig.Deviations)
		return tier, rationale, TaskOutcome{Task: prompt.TaskRiskTriage, ParseMethod: methodFallback, Latency: run.Latency}
	}
	return parsed.Tier, parsed.Rationale, TaskOutcome{
		Task:        prompt.TaskRiskTriage,
		UsedModel:   true,
		ParseMethod: parsed.Method,
		Latency:     run.Latency,
	}
}

// rerank orders the safety plan sections for the session.
func (o *Orchestrator) rerank(ctx context.Context, sig signals.SessionSignals, history string, res *CheckInResult) []int {
	p := o.assembler.Build(prompt.TaskRerank, prompt.Inputs{
		Signals: sig,
		History: history,
		Tier:    res.FinalTier,
	})

	run, err := o.exec.Run(ctx, p, o.cfg.Inference.Timeouts.SafetyPlanRerank, inference.WaitForCompletion(o.cfg.Inference.MaxTokens))
	if err == nil {
		if order, perr := parser.ParseRerank(run.Text); perr == nil {
			res.Outcomes = append(res.Outcomes, TaskOutcome{Task: prompt.TaskRerank, UsedModel: true, ParseMethod: "permutation", Latency: run.Latency})
			return order
		}
	}
	res.Outcomes = append(res.Outcomes, TaskOutcome{Task: prompt.TaskRerank, ParseMethod: methodFallback, Latency: run.Latency})
	return fallback.Rerank(res.Driver)
}

// compress folds the session into the longitudinal narrative. On any
// failure the previous narrative passes through unchanged so history is
// never corrupted by a bad compression.
func (o *Orchestrator) compress(ctx context.Context, sig signals.SessionSignals, history string, res *CheckInResult) string {
	p := o.assembler.Build(prompt.TaskCompression, prompt.Inputs{
		Signals:        sig,
		History:        history,
		PriorNarrative: history,
		Tier:           res.FinalTier,
	})

	run, err := o.exec.Run(ctx, p, o.cfg.Inference.Timeouts.NarrativeCompression, inference.WaitForCompletion(o.cfg.Inference.MaxTokens))
	if err == nil {
		if text := strings.TrimSpace(parser.StripThinking(run.Text)); text != "" {
			res.Outcomes = append(res.Outcomes, TaskOutcome{Task: prompt.TaskCompression, UsedModel: true, ParseMethod: "cleaned", Latency: run.Latency})
			return text
		}
	}
	res.Outcomes = append(res.Outcomes, TaskOutcome{Task: prompt.TaskCompression, ParseMethod: methodFallback, Latency: run.Latency})
	return fallback.Compression(history)
}

// Explain produces the plain-language tier explanation for a recipient,
// capped at two sentences either way.
func (o *Orchestrator) Explain(ctx context.Context, tier risk.Tier, driver risk.PrimaryDriver, recipient prompt.Recipient) (string, TaskOutcome) {
	p := o.assembler.Build(prompt.TaskExplanation, prompt.Inputs{
		Tier:      tier,
		Recipient: recipient,
	})

	run, err := o.exec.Run(ctx, p, o.cfg.Inference.Timeouts.Explanation, inference.WaitForCompletion(o.cfg.Inference.MaxTokens))
	if err == nil {
		if text := parser.CleanNarrative(run.Text); text != "" {
			return text, TaskOutcome{Task: prompt.TaskExplanation, UsedModel: true, ParseMethod: "cleaned", Latency: run.Latency}
		}
	}
	return fallback.Explanation(tier, driver, string(recipient)),
		TaskOutcome{Task: prompt.TaskExplanation, ParseMethod: methodFallback, Latency: run.Latency}
}

// ReportArgs carries the structured fields for a handoff report.
type ReportArgs struct {
	Signals   signals.SessionSignals
	History   string
	Tier      risk.Tier
	Driver    risk.PrimaryDriver
	Recipient prompt.Recipient
}

// GenerateReport streams the SBAR handoff. The budget covers only the
// wait for the first token; the stream then runs until the stop delimiter
// or the character ceiling. Failure falls back to the template report.
func (o *Orchestrator) GenerateReport(ctx context.Context, args ReportArgs) (string, TaskOutcome) {
	p := o.assembler.Build(prompt.TaskReport, prompt.Inputs{
		Signals:    args.Signals,
		History:    args.History,
		Tier:       args.Tier,
		Recipient:  args.Recipient,
		NewContext: o.cfg.Inference.ReportStopDelimiter,
	})

	mode := inference.StreamUntilDelimiters([]string{o.cfg.Inference.ReportStopDelimiter}, 1, 0)
	mode.MaxChars = o.cfg.Inference.ReportCharCeiling
	mode.BudgetToFirstToken = true

	run, err := o.exec.Run(ctx, p, o.cfg.Inference.Timeouts.ReportFirstToken, mode)
	if err == nil {
		text := strings.TrimSpace(strings.Replace(run.Text, o.cfg.Inference.ReportStopDelimiter, "", 1))
		if text != "" {
			return text, TaskOutcome{Task: prompt.TaskReport, UsedModel: true, ParseMethod: "streamed", Latency: run.Latency}
		}
	}

	text := fallback.Report(fallback.ReportInputs{
		Tier:          args.Tier,
		Driver:        args.Driver,
		HealthSummary: args.Signals.HealthDeviationSummary,
		Screening:     args.Signals.Questionnaire,
		Recipient:     string(args.Recipient),
	})
	return text, TaskOutcome{Task: prompt.TaskReport, ParseMethod: methodFallback, Latency: run.Latency}
}

// IngestDocument summarizes a prior clinical record and seeds (or extends)
// the longitudinal narrative with it.
func (o *Orchestrator) IngestDocument(ctx context.Context, document string) (string, TaskOutcome, error) {
	p := o.assembler.Build(prompt.TaskIngestion, prompt.Inputs{NewContext: document})

	summary := ""
	outcome := TaskOutcome{Task: prompt.TaskIngestion, ParseMethod: methodFallback}
	run, err := o.exec.Run(ctx, p, o.cfg.Inference.Timeouts.DocumentIngestion, inference.WaitForCompletion(o.cfg.Inference.MaxTokens))
	if err == nil {
		summary = strings.TrimSpace(parser.StripThinking(run.Text))
		outcome = TaskOutcome{Task: prompt.TaskIngestion, UsedModel: true, ParseMethod: "cleaned", Latency: run.Latency}
	}
	if summary == "" {
		summary = fallback.Ingestion(document)
		outcome = TaskOutcome{Task: prompt.TaskIngestion, ParseMethod: methodFallback, Latency: run.Latency}
	}

	now := o.now()
	prev, err := o.store.Load(now, o.cfg.Storage.StalenessWindow)
	if err != nil {
		return "", outcome, err
	}
	narrative := summary
	if prev != nil && strings.TrimSpace(prev.Narrative) != "" {
		narrative = prev.Narrative + "\n" + summary
	}
	st := prev
	if st == nil {
		st = &state.LongitudinalState{}
	}
	st.Narrative = narrative
	st.LastUpdated = now
	if err := o.store.Save(*st); err != nil {
		return "", outcome, err
	}
	return summary, outcome, nil
}
