// Package prompt owns the six clinical task templates and the assembler
// that fills them from session signals and longitudinal state. Templates
// are versioned external configuration loaded over embedded defaults; the
// pack validates at startup that every required task is present and fails
// fast on a gap. Assembly itself is pure and total - a missing input
// degrades to an explicit "not available" marker, never to an error.
package prompt

// TaskType identifies one of the six fixed clinical inference tasks.
type TaskType string

const (
	// TaskRiskTriage classifies the session into a risk tier with a
	// one-sentence rationale. Streamed; stops after two lines.
	TaskRiskTriage TaskType = "risk_triage"

	// TaskCompression rewrites the longitudinal narrative to fold in the
	// current session.
	TaskCompression TaskType = "compression"

	// TaskRerank reorders the 7-section safety plan by relevance to the
	// current clinical driver.
	TaskRerank TaskType = "rerank"

	// TaskReport generates the SBAR handoff report. Streamed with a stop
	// delimiter and hard character ceiling.
	TaskReport TaskType = "report"

	// TaskIngestion summarizes a prior clinical record ingested once at
	// startup.
	TaskIngestion TaskType = "ingestion"

	// TaskExplanation produces the plain-language explanation of the
	// final tier for the end user.
	TaskExplanation TaskType = "explanation"
)

// AllTasks lists every task the engine drives. The template pack must
// cover a strict superset of this list.
var AllTasks = []TaskType{
	TaskRiskTriage,
	TaskCompression,
	TaskRerank,
	TaskReport,
	TaskIngestion,
	TaskExplanation,
}

// Recipient identifies who a report or explanation addresses. It changes
// register, not content.
type Recipient string

const (
	RecipientClinician Recipient = "clinician"
	RecipientCaregiver Recipient = "caregiver"
	RecipientSelf      Recipient = "self"
)
