package prompt

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"vigil/internal/logging"
)

// ErrMissingTemplate is a process-level configuration error: the loaded
// pack does not cover every required task. Fatal at startup, never a
// per-call failure.
var ErrMissingTemplate = fmt.Errorf("prompt template pack incomplete")

// The placeholder vocabulary. Every template references only these.
const (
	PHHistory        = "{{history}}"
	PHHealth         = "{{health}}"
	PHTranscript     = "{{transcript}}"
	PHVoice          = "{{voice}}"
	PHTelemetry      = "{{telemetry}}"
	PHQuestionnaire  = "{{questionnaire}}"
	PHRiskTier       = "{{risk_tier}}"
	PHRecipient      = "{{recipient}}"
	PHPriorNarrative = "{{prior_narrative}}"
	PHNewContext     = "{{new_context}}"
)

// defaultTemplates are the built-in literals used when no external pack is
// configured or a pack omits a task. Kept deliberately terse: the local
// model follows short imperative instructions far better than prose.
var defaultTemplates = map[TaskType]string{
	TaskRiskTriage: `You are a clinical risk triage assistant.
Assess the session below and answer in EXACTLY two lines:
line 1: one word, the risk tier: GREEN, YELLOW, ORANGE, or RED
line 2: one sentence explaining the strongest factor.

History: {{history}}
Health: {{health}}
Voice: {{voice}}
Behavior: {{telemetry}}
Screening: {{questionnaire}}
Transcript: {{transcript}}`,

	TaskCompression: `Compress the clinical history below into at most four sentences.
Preserve trajectory, the primary driver, and any crisis history.

Prior summary: {{prior_narrative}}
Latest session: risk tier {{risk_tier}}; {{health}}; {{questionnaire}}`,

	TaskRerank: `A safety plan has 7 sections:
1 warning signs, 2 coping strategies, 3 social distractions,
4 personal contacts, 5 professional contacts, 6 lethal means restriction,
7 reasons for living.
Order the section numbers from most to least relevant for this person,
as a comma-separated list of the digits 1-7 and nothing else.

Current state: {{history}}
Health: {{health}}
Risk tier: {{risk_tier}}`,

	TaskReport: `Write a concise SBAR handoff report for a {{recipient}}.
Use the headings Situation, Background, Assessment, Recommendation.
End with {{new_context}}.

Risk tier: {{risk_tier}}
History: {{history}}
Health: {{health}}
Screening: {{questionnaire}}
Session transcript: {{transcript}}`,

	TaskIngestion: `Summarize the following clinical document in at most five
sentences, keeping diagnoses, medications, and prior risk events.

Document: {{new_context}}`,

	TaskExplanation: `Explain in plain language, for the {{recipient}}, why the
risk level is {{risk_tier}}. At most two sentences. No clinical jargon.

Basis: {{history}}; {{health}}; {{questionnaire}}`,
}

// Pack is a versioned set of task templates. Safe for concurrent read and
// reload (the watcher swaps templates under the lock).
type Pack struct {
	mu        sync.RWMutex
	version   string
	templates map[TaskType]string
}

// packFile is the on-disk YAML shape.
type packFile struct {
	Version   string            `yaml:"version"`
	Templates map[string]string `yaml:"templates"`
}

// NewPack returns a pack holding only the embedded defaults.
func NewPack() *Pack {
	t := make(map[TaskType]string, len(defaultTemplates))
	for k, v := range defaultTemplates {
		t[k] = v
	}
	return &Pack{version: "builtin", templates: t}
}

// LoadPack layers an external YAML pack over the embedded defaults and
// validates the result. A missing file falls back to defaults; a present
// but incomplete or unreadable pack is a configuration error.
func LoadPack(path string) (*Pack, error) {
	p := NewPack()
	if path == "" {
		return p, nil
	}
	if err := p.reload(path); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pack) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryBoot).Warnw("template pack missing, using builtin defaults", "path", path)
			return nil
		}
		return fmt.Errorf("read template pack %s: %w", path, err)
	}
	var pf packFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse template pack %s: %w", path, err)
	}

	merged := make(map[TaskType]string, len(defaultTemplates))
	for k, v := range defaultTemplates {
		merged[k] = v
	}
	for name, tpl := range pf.Templates {
		merged[TaskType(name)] = tpl
	}
	if err := validate(merged); err != nil {
		return err
	}

	p.mu.Lock()
	p.templates = merged
	if pf.Version != "" {
		p.version = pf.Version
	}
	p.mu.Unlock()

	logging.Get(logging.CategoryBoot).Infow("template pack loaded",
		"path", path, "version", p.Version(), "templates", len(merged))
	return nil
}

// validate enforces the strict-superset contract: every required task must
// have a non-empty template.
func validate(templates map[TaskType]string) error {
	for _, task := range AllTasks {
		if templates[task] == "" {
			return fmt.Errorf("%w: missing template for task %q", ErrMissingTemplate, task)
		}
	}
	return nil
}

// Template returns the template for a task. The pack is validated at load
// time, so a registered task always resolves.
func (p *Pack) Template(task TaskType) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.templates[task]
}

// Version returns the loaded pack version ("builtin" for defaults).
func (p *Pack) Version() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}
