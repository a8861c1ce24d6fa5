// Package parser extracts structure from noisy model output. Each parser
// is a strategy cascade in the order most-strict to most-forgiving, and
// records which strategy succeeded so provenance reaches the audit log.
// A cascade that exhausts every strategy reports a parse failure - never
// a default value - and the caller substitutes the deterministic fallback.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"vigil/internal/logging"
	"vigil/internal/risk"
)

// ErrParseFailure means no strategy extracted a usable result. Treated by
// callers exactly like a backend failure.
var ErrParseFailure = errors.New("model output unparsable")

// TierResult is a successfully extracted classification.
type TierResult struct {
	Tier      risk.Tier
	Rationale string
	// Method names the strategy that succeeded: first_line, keyword,
	// phrase, or structured.
	Method string
}

var tierWords = map[string]risk.Tier{
	"GREEN":  risk.TierLow,
	"YELLOW": risk.TierModerate,
	"ORANGE": risk.TierHighMonitoring,
	"RED":    risk.TierCrisis,
}

// Canonical risk phrases, checked most severe first so a rationale that
// mentions several severities resolves upward.
var tierPhrases = []struct {
	phrase string
	tier   risk.Tier
}{
	{"imminent risk", risk.TierCrisis},
	{"immediate danger", risk.TierCrisis},
	{"high risk", risk.TierHighMonitoring},
	{"elevated risk", risk.TierModerate},
	{"moderate risk", risk.TierModerate},
	{"minimal risk", risk.TierLow},
	{"low risk", risk.TierLow},
}

var tierWordRe = regexp.MustCompile(`\b(GREEN|YELLOW|ORANGE|RED)\b`)

// ParseTier runs the four-strategy cascade over raw triage output.
func ParseTier(raw string) (TierResult, error) {
	text := StripThinking(raw)

	if res, ok := parseFirstLine(text); ok {
		return res, nil
	}
	if res, ok := parseKeyword(text); ok {
		return res, nil
	}
	if res, ok := parsePhrase(text); ok {
		return res, nil
	}
	if res, ok := parseStructured(text); ok {
		return res, nil
	}

	logging.Get(logging.CategoryParser).Warnw("tier cascade exhausted",
		"preview", preview(raw))
	return TierResult{}, fmt.Errorf("risk tier: %w", ErrParseFailure)
}

// parseFirstLine accepts output whose first non-empty line is exactly one
// tier color word.
func parseFirstLine(text string) (TierResult, bool) {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return TierResult{}, false
	}
	word := strings.ToUpper(strings.TrimRight(strings.TrimSpace(lines[0]), ".!:"))
	tier, ok := tierWords[word]
	if !ok {
		return TierResult{}, false
	}
	rationale := ""
	if len(lines) > 1 {
		rationale = CleanNarrative(lines[1])
	}
	return TierResult{Tier: tier, Rationale: rationale, Method: "first_line"}, true
}

// parseKeyword scans the full text for tier color words; the earliest
// occurrence wins. The match is taken from the uppercased string itself:
// Unicode case mapping can change byte length, so indices into the
// uppercased text must never be used to slice the original.
func parseKeyword(text string) (TierResult, bool) {
	word := tierWordRe.FindString(strings.ToUpper(text))
	if word == "" {
		return TierResult{}, false
	}
	tier, ok := tierWords[word]
	if !ok {
		return TierResult{}, false
	}
	return TierResult{
		Tier:      tier,
		Rationale: CleanNarrative(text),
		Method:    "keyword",
	}, true
}

// parsePhrase scans for canonical risk phrases.
func parsePhrase(text string) (TierResult, bool) {
	lower := strings.ToLower(text)
	for _, p := range tierPhrases {
		if strings.Contains(lower, p.phrase) {
			return TierResult{
				Tier:      p.tier,
				Rationale: CleanNarrative(text),
				Method:    "phrase",
			}, true
		}
	}
	return TierResult{}, false
}

// legacyPayload is the structured shape older template packs requested.
type legacyPayload struct {
	Tier      string `json:"tier"`
	RiskTier  string `json:"risk_tier"`
	RiskLevel string `json:"risk_level"`
	Rationale string `json:"rationale"`
	Reason    string `json:"reason"`
}

var kvTierRe = regexp.MustCompile(`(?im)^\s*(?:risk[_ ]?)?(?:tier|level)\s*[:=]\s*"?([A-Za-z ]+)"?`)

// parseStructured decodes legacy key-value or JSON-like payloads.
func parseStructured(text string) (TierResult, bool) {
	// JSON object anywhere in the output, markdown fences included.
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			var p legacyPayload
			if err := json.Unmarshal([]byte(text[start:end+1]), &p); err == nil {
				name := firstNonEmpty(p.Tier, p.RiskTier, p.RiskLevel)
				if tier, ok := tierByName(name); ok {
					return TierResult{
						Tier:      tier,
						Rationale: CleanNarrative(firstNonEmpty(p.Rationale, p.Reason)),
						Method:    "structured",
					}, true
				}
			}
		}
	}
	// Plain "tier: ORANGE" key-value lines.
	if m := kvTierRe.FindStringSubmatch(text); m != nil {
		if tier, ok := tierByName(m[1]); ok {
			return TierResult{Tier: tier, Rationale: CleanNarrative(text), Method: "structured"}, true
		}
	}
	return TierResult{}, false
}

func tierByName(name string) (risk.Tier, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "GREEN", "LOW":
		return risk.TierLow, true
	case "YELLOW", "MODERATE":
		return risk.TierModerate, true
	case "ORANGE", "HIGH", "HIGH MONITORING":
		return risk.TierHighMonitoring, true
	case "RED", "CRISIS":
		return risk.TierCrisis, true
	default:
		return 0, false
	}
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
