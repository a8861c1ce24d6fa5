package prompt

import (
	"strings"

	"vigil/internal/questionnaire"
	"vigil/internal/risk"
	"vigil/internal/signals"
)

// NotAvailable is the explicit degradation marker substituted for any
// missing optional input. Placeholders are never silently dropped.
const NotAvailable = "not available"

// Inputs carries everything a template may reference. Optional fields left
// zero degrade to the NotAvailable marker.
type Inputs struct {
	Signals signals.SessionSignals

	// History is the longitudinal narrative from the state store.
	History string

	// PriorNarrative is the previous compressed narrative, for the
	// compression task specifically.
	PriorNarrative string

	// Tier is the risk tier known at assembly time (floor for triage
	// inputs, final for downstream tasks).
	Tier risk.Tier

	// Recipient addresses reports and explanations.
	Recipient Recipient

	// NewContext carries task-specific extra text: the ingested document
	// for ingestion, the stop delimiter for report generation.
	NewContext string
}

// Assembler fills task templates from session inputs.
type Assembler struct {
	pack *Pack
}

// NewAssembler wraps a validated pack.
func NewAssembler(pack *Pack) *Assembler {
	return &Assembler{pack: pack}
}

// Build renders the prompt for a task. Pure and total: it never fails and
// never performs I/O; every unresolved placeholder is replaced with the
// NotAvailable marker.
func (a *Assembler) Build(task TaskType, in Inputs) string {
	tpl := a.pack.Template(task)

	recipient := string(in.Recipient)
	if recipient == "" {
		recipient = string(RecipientClinician)
	}

	replacements := map[string]string{
		PHHistory:        orMarker(in.History),
		PHHealth:         orMarker(in.Signals.HealthDeviationSummary),
		PHTranscript:     orMarker(in.Signals.Transcript),
		PHVoice:          orMarker(in.Signals.VoiceSummary),
		PHTelemetry:      orMarker(in.Signals.TelemetrySummary),
		PHQuestionnaire:  orMarker(questionnaire.Summary(in.Signals.Questionnaire)),
		PHRiskTier:       in.Tier.Label(),
		PHRecipient:      recipient,
		PHPriorNarrative: orMarker(in.PriorNarrative),
		PHNewContext:     orMarker(in.NewContext),
	}

	out := tpl
	for ph, val := range replacements {
		out = strings.ReplaceAll(out, ph, val)
	}
	return out
}

func orMarker(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}
