package config

import "time"

// Timeouts centralizes the per-task inference budgets.
//
// The shortest timeout in the chain wins: a call wrapped in a 15s context
// fails after 15s no matter how patient the backend is. Every executor
// call takes its budget from this table rather than a single global value,
// because the tasks have very different latency tolerances - triage can
// afford a minute, safety-plan reranking cannot.
type Timeouts struct {
	// RiskTriage bounds the streamed tier + rationale call. Streaming
	// usually terminates well under this once two lines are observed.
	RiskTriage time.Duration `yaml:"risk_triage"`

	// NarrativeCompression bounds the longitudinal narrative rewrite.
	NarrativeCompression time.Duration `yaml:"narrative_compression"`

	// SafetyPlanRerank bounds the 1-7 section reordering call. Tight on
	// purpose: the deterministic fallback order is clinically acceptable.
	SafetyPlanRerank time.Duration `yaml:"safety_plan_rerank"`

	// ReportFirstToken bounds the wait for the first streamed report
	// token. Once tokens flow, the char ceiling governs.
	ReportFirstToken time.Duration `yaml:"report_first_token"`

	// DocumentIngestion bounds one-shot ingestion of a prior record.
	DocumentIngestion time.Duration `yaml:"document_ingestion"`

	// Explanation bounds the plain-language explanation call.
	Explanation time.Duration `yaml:"explanation"`

	// HealthFetch bounds biometric collaborator queries. A miss degrades
	// to zero deviations; it never blocks the session pipeline.
	HealthFetch time.Duration `yaml:"health_fetch"`
}

// DefaultTimeouts returns budgets calibrated for a quantized 3B model on
// consumer hardware.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		RiskTriage:           60 * time.Second,
		NarrativeCompression: 30 * time.Second,
		SafetyPlanRerank:     15 * time.Second,
		ReportFirstToken:     10 * time.Second,
		DocumentIngestion:    60 * time.Second,
		Explanation:          30 * time.Second,
		HealthFetch:          5 * time.Second,
	}
}
