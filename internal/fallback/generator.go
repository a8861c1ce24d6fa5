// Package fallback produces deterministic, rule-based substitutes for
// every inference task. It is keyed only on locally available structured
// data and never touches the model backend, so a check-in always completes
// with a determinate result no matter what the model does. Downstream
// consumers cannot distinguish fallback output from a successful parse
// except by the provenance flag.
package fallback

import (
	"fmt"
	"strings"

	"vigil/internal/logging"
	"vigil/internal/parser"
	"vigil/internal/questionnaire"
	"vigil/internal/risk"
	"vigil/internal/signals"
)

// Triage scores the session from questionnaire positives and health
// z-score thresholds. The questionnaire floor rule is authoritative;
// biometric deviations can raise the result but health alone never
// reaches Crisis.
func Triage(answers questionnaire.Answers, dev signals.HealthDeviations) (risk.Tier, string) {
	tier := questionnaire.ComputeFloorTier(answers)

	score := 0
	for _, z := range []float64{dev.SleepZ, dev.ActivityZ, dev.HRVZ} {
		switch {
		case abs(z) > signals.ZSignificant:
			score += 2
		case abs(z) > signals.ZConcerning:
			score++
		}
	}
	switch {
	case score >= 4 && tier < risk.TierHighMonitoring:
		tier = risk.TierHighMonitoring
	case score >= 2 && tier < risk.TierModerate:
		tier = risk.TierModerate
	}

	rationale := triageRationale(answers, score)
	logging.Get(logging.CategoryFallback).Infow("deterministic triage",
		"tier", tier.Label(), "health_score", score)
	return tier, rationale
}

func triageRationale(answers questionnaire.Answers, healthScore int) string {
	switch {
	case answers.PositiveCount() > 0 && healthScore > 0:
		return "Screening responses and biometric deviations both indicate elevated risk."
	case answers.PositiveCount() > 0:
		return "Screening responses indicate elevated risk."
	case healthScore >= 4:
		return "Multiple biometric measures deviate significantly from baseline."
	case healthScore >= 2:
		return "Biometric measures deviate from the recent baseline."
	default:
		return "No elevated risk indicators in screening or biometrics."
	}
}

// Safety plan section order per primary driver. Sleep-driven risk leads
// with coping strategies, questionnaire-driven risk leads with
// professional contacts, and the evidence-based default leads with lethal
// means restriction.
var rerankOrders = map[risk.PrimaryDriver][]int{
	risk.DriverSleep:         {2, 1, 3, 7, 4, 5, 6},
	risk.DriverQuestionnaire: {5, 6, 4, 1, 2, 3, 7},
}

var rerankDefault = []int{6, 5, 4, 1, 2, 3, 7}

// Rerank returns the static section order for the driver. Always a full
// permutation of 1..7.
func Rerank(driver risk.PrimaryDriver) []int {
	order, ok := rerankOrders[driver]
	if !ok {
		order = rerankDefault
	}
	out := make([]int, len(order))
	copy(out, order)
	return out
}

// ReportInputs carries the structured fields the SBAR template needs.
type ReportInputs struct {
	Tier          risk.Tier
	Driver        risk.PrimaryDriver
	Trajectory    risk.Trajectory
	CheckInCount  int
	Patterns      []risk.DetectedPattern
	HealthSummary string
	Screening     questionnaire.Answers
	Recipient     string
}

// Report renders the fixed four-section SBAR handoff from structured
// fields only.
func Report(in ReportInputs) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Situation\nCurrent risk level is %s.", in.Tier.Label())
	if in.Tier >= risk.TierHighMonitoring {
		b.WriteString(" Close monitoring is in effect.")
	}

	fmt.Fprintf(&b, "\n\nBackground\n%d check-ins on record; trajectory %s.",
		in.CheckInCount, trajectoryOrStable(in.Trajectory))
	if in.HealthSummary != "" {
		b.WriteString(" " + in.HealthSummary)
	}

	b.WriteString("\n\nAssessment\n")
	fmt.Fprintf(&b, "Primary driver: %s.", driverLabel(in.Driver))
	if in.Screening.PositiveCount() > 0 {
		fmt.Fprintf(&b, " Structured screening returned %d positive response(s).", in.Screening.PositiveCount())
	}
	for _, p := range in.Patterns {
		fmt.Fprintf(&b, " Detected pattern: %s (%s).", p.Type, p.Severity)
	}

	b.WriteString("\n\nRecommendation\n")
	b.WriteString(recommendation(in.Tier))
	return b.String()
}

func recommendation(t risk.Tier) string {
	switch t {
	case risk.TierCrisis:
		return "Immediate safety assessment. Review safety plan and restrict lethal means. Escalate to crisis services if stability cannot be confirmed."
	case risk.TierHighMonitoring:
		return "Increase check-in frequency. Review the safety plan together and confirm professional contact availability."
	case risk.TierModerate:
		return "Schedule a follow-up within the week and review coping strategies."
	default:
		return "Continue routine monitoring at the current cadence."
	}
}

// Explanation renders the plain-language tier explanation. At most two
// sentences, register adjusted to the recipient.
func Explanation(tier risk.Tier, driver risk.PrimaryDriver, recipient string) string {
	basis := driverLabel(driver)
	var text string
	if recipient == "self" {
		text = fmt.Sprintf("Your check-in is at the %s level, mostly because of %s. This reflects today's answers and measurements, not a diagnosis.",
			strings.ToLower(tier.Label()), basis)
	} else {
		text = fmt.Sprintf("The assessment places this session at %s, driven primarily by %s. The classification combines structured screening with biometric and behavioral signals.",
			tier.Label(), basis)
	}
	return parser.CleanNarrative(text)
}

// Ingestion summarizes a document deterministically: the first sentences
// up to a fixed budget, with a provenance note.
func Ingestion(document string) string {
	const maxChars = 600
	doc := strings.TrimSpace(document)
	if doc == "" {
		return "No prior clinical record available."
	}
	if len(doc) > maxChars {
		cut := strings.LastIndexAny(doc[:maxChars], ".!?")
		if cut < maxChars/2 {
			cut = maxChars - 1
		}
		doc = doc[:cut+1]
	}
	return "Prior record (excerpt): " + doc
}

// Compression is the fallback for narrative compression: the previous
// narrative passes through unchanged. The engine never invents history.
func Compression(previousNarrative string) string {
	return previousNarrative
}

func driverLabel(d risk.PrimaryDriver) string {
	switch d {
	case risk.DriverSleep:
		return "sleep disruption"
	case risk.DriverActivity:
		return "reduced activity"
	case risk.DriverHRV:
		return "heart-rate variability changes"
	case risk.DriverMood:
		return "mood and expression signals"
	case risk.DriverQuestionnaire:
		return "screening responses"
	default:
		return "a combination of signals"
	}
}

func trajectoryOrStable(t risk.Trajectory) risk.Trajectory {
	if t == "" {
		return risk.TrajectoryStable
	}
	return t
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
