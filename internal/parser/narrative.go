package parser

import (
	"regexp"
	"strings"
)

// Thinking markup emitted by reasoning-tuned local models. Stripped before
// any text reaches the user.
var thinkingRe = regexp.MustCompile(`(?is)<(think|thinking|reasoning|scratchpad)>.*?</(think|thinking|reasoning|scratchpad)>`)

var thinkingPrefixRe = regexp.MustCompile(`(?im)^(thinking|reasoning|thought)\s*:\s*.*$`)

// StripThinking removes chain-of-thought markup and fenced code wrappers
// from raw model output.
func StripThinking(raw string) string {
	out := thinkingRe.ReplaceAllString(raw, "")
	out = thinkingPrefixRe.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "```", "")
	return strings.TrimSpace(out)
}

// maxExplanationSentences caps user-facing explanations.
const maxExplanationSentences = 2

var sentenceEndRe = regexp.MustCompile(`[.!?](\s|$)`)

// CleanNarrative strips thinking markup and truncates free text to at most
// two sentences. Used on every explanation and rationale surfaced to the
// user.
func CleanNarrative(raw string) string {
	text := StripThinking(raw)
	if text == "" {
		return ""
	}

	ends := sentenceEndRe.FindAllStringIndex(text, maxExplanationSentences)
	if len(ends) < maxExplanationSentences {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:ends[maxExplanationSentences-1][0]+1])
}
