// Package questionnaire implements the deterministic clinical screening
// state machine. Six fixed yes/no questions with one conditional branch:
// a negative answer to question 2 (active ideation) skips the ideation
// follow-ups (3-5) and jumps directly to question 6 (recent behavior).
// The floor tier computed here is a hard lower bound downstream; the
// model can never undercut it.
package questionnaire

import (
	"vigil/internal/logging"
	"vigil/internal/risk"
)

// QuestionSpec describes one screening question.
type QuestionSpec struct {
	Index int    // 1-based position in the fixed questionnaire
	Text  string
}

const (
	qPassiveWish  = 1 // wish to be dead
	qIdeation     = 2 // active suicidal thoughts (branch gate)
	qMethod       = 3 // thought about how
	qIntent       = 4 // intent to act
	qPlan         = 5 // worked out a plan
	qRecentAction = 6 // recent preparatory behavior or attempt

	firstQuestion = qPassiveWish
	lastQuestion  = qRecentAction
)

var questions = map[int]QuestionSpec{
	qPassiveWish:  {qPassiveWish, "In the past month, have you wished you were dead or wished you could go to sleep and not wake up?"},
	qIdeation:     {qIdeation, "In the past month, have you actually had any thoughts of killing yourself?"},
	qMethod:       {qMethod, "Have you been thinking about how you might do this?"},
	qIntent:       {qIntent, "Have you had these thoughts and had some intention of acting on them?"},
	qPlan:         {qPlan, "Have you started to work out or worked out the details of how to kill yourself, with some intent to carry it out?"},
	qRecentAction: {qRecentAction, "In the past three months, have you done anything, started to do anything, or prepared to do anything to end your life?"},
}

// Answers is the finalized record of a completed questionnaire.
type Answers struct {
	// ByIndex maps question index to the recorded yes/no answer.
	// Questions skipped by the branch are absent.
	ByIndex map[int]bool
	// BranchSkipped is true when question 2 was answered negatively and
	// questions 3-5 were never asked.
	BranchSkipped bool
}

// Positive reports whether the question at idx was answered yes.
// Skipped and unanswered questions read as no.
func (a Answers) Positive(idx int) bool { return a.ByIndex[idx] }

// AnyPositive reports whether any recorded answer is yes.
func (a Answers) AnyPositive() bool {
	for _, v := range a.ByIndex {
		if v {
			return true
		}
	}
	return false
}

// PositiveCount returns the number of yes answers.
func (a Answers) PositiveCount() int {
	n := 0
	for _, v := range a.ByIndex {
		if v {
			n++
		}
	}
	return n
}

// Engine is the questionnaire state machine. Pure in-memory; no I/O.
// Not safe for concurrent use; one check-in drives one engine.
type Engine struct {
	answers map[int]bool
	current int
	done    bool
}

// NewEngine returns an engine positioned at question 1.
func NewEngine() *Engine {
	return &Engine{
		answers: make(map[int]bool),
		current: firstQuestion,
	}
}

// CurrentQuestion returns the question awaiting an answer.
// Undefined once the questionnaire is complete.
func (e *Engine) CurrentQuestion() QuestionSpec {
	return questions[e.current]
}

// Done reports whether all reachable questions have been answered.
func (e *Engine) Done() bool { return e.done }

// SubmitAnswer records the answer for the current question and advances.
// Returns true while more questions remain.
func (e *Engine) SubmitAnswer(yes bool) (hasNext bool) {
	if e.done {
		return false
	}
	e.answers[e.current] = yes

	switch {
	case e.current == qIdeation && !yes:
		// Negative ideation gate: follow-ups 3-5 do not apply.
		e.current = qRecentAction
	case e.current == lastQuestion:
		e.done = true
	default:
		e.current++
	}

	if e.done {
		logging.Get(logging.CategoryQuestionnaire).Debugw("questionnaire complete",
			"positives", Answers{ByIndex: e.answers}.PositiveCount())
	}
	return !e.done
}

// GoBack steps to the previous asked question, discarding its answer so it
// can be re-answered. Stepping back from question 6 restores the branch
// point: question 2 when the branch was skipped, question 5 otherwise.
// No-op at question 1 with nothing answered.
func (e *Engine) GoBack() {
	if e.done {
		e.done = false
		e.current = lastQuestion
		delete(e.answers, e.current)
		return
	}
	switch {
	case e.current == qRecentAction:
		if taken, ok := e.answers[qIdeation]; ok && !taken {
			e.current = qIdeation
		} else {
			e.current = qPlan
		}
	case e.current > firstQuestion:
		e.current--
	default:
		return
	}
	delete(e.answers, e.current)
}

// Finalize freezes the answer map into an immutable record.
func (e *Engine) Finalize() Answers {
	byIndex := make(map[int]bool, len(e.answers))
	for k, v := range e.answers {
		byIndex[k] = v
	}
	gate, answered := e.answers[qIdeation]
	return Answers{
		ByIndex:       byIndex,
		BranchSkipped: answered && !gate,
	}
}

// ComputeFloorTier evaluates the tier rule over finalized answers.
// Highest-priority match wins:
//
//	intent or plan positive          -> Crisis
//	recent preparatory act positive  -> HighMonitoring
//	method, ideation, or wish        -> Moderate
//	otherwise                        -> Low
func ComputeFloorTier(a Answers) risk.Tier {
	switch {
	case a.Positive(qIntent) || a.Positive(qPlan):
		return risk.TierCrisis
	case a.Positive(qRecentAction):
		return risk.TierHighMonitoring
	case a.Positive(qMethod) || a.Positive(qIdeation) || a.Positive(qPassiveWish):
		return risk.TierModerate
	default:
		return risk.TierLow
	}
}

// Summary renders a compact answer summary for prompts and reports.
func Summary(a Answers) string {
	if len(a.ByIndex) == 0 {
		return "Screening not completed."
	}
	out := ""
	for i := firstQuestion; i <= lastQuestion; i++ {
		v, ok := a.ByIndex[i]
		if !ok {
			continue
		}
		ans := "no"
		if v {
			ans = "YES"
		}
		if out != "" {
			out += "; "
		}
		out += questions[i].Text + " " + ans
	}
	return out
}
