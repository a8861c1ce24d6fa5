package inference

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ScriptedBackend is an in-process Backend that replays configured text
// token by token. It backs tests and the CLI's demo mode; it exercises the
// full executor path (serialization, streaming, cancellation) without
// model weights.
type ScriptedBackend struct {
	mu sync.Mutex

	// Script maps a prompt substring to the response replayed when a
	// prompt contains it. First match wins in insertion order.
	script []scriptEntry

	// DefaultResponse is replayed when no script entry matches.
	DefaultResponse string

	// TokenDelay is the pause before each token, simulating generation
	// latency.
	TokenDelay time.Duration

	// LoadErr, when set, makes every load attempt fail.
	LoadErr error

	loaded    atomic.Bool
	loadCalls atomic.Int64
	genCalls  atomic.Int64
	// generating guards the single-threaded generation invariant; tests
	// assert it never exceeds 1.
	generating atomic.Int64
	maxActive  atomic.Int64
}

type scriptEntry struct {
	match    string
	response string
}

// NewScriptedBackend returns an unloaded backend with the given default
// response.
func NewScriptedBackend(defaultResponse string) *ScriptedBackend {
	return &ScriptedBackend{DefaultResponse: defaultResponse}
}

// Respond registers a response for prompts containing match.
func (b *ScriptedBackend) Respond(match, response string) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = append(b.script, scriptEntry{match: match, response: response})
	return b
}

// Load implements Backend.
func (b *ScriptedBackend) Load(ctx context.Context) error {
	b.loadCalls.Add(1)
	if b.LoadErr != nil {
		return b.LoadErr
	}
	b.loaded.Store(true)
	return nil
}

// Loaded implements Backend.
func (b *ScriptedBackend) Loaded() bool { return b.loaded.Load() }

// LoadCalls returns how many lazy loads were attempted.
func (b *ScriptedBackend) LoadCalls() int64 { return b.loadCalls.Load() }

// GenerateCalls returns how many generations ran.
func (b *ScriptedBackend) GenerateCalls() int64 { return b.genCalls.Load() }

// MaxConcurrentGenerations returns the high-water mark of simultaneous
// Generate calls observed.
func (b *ScriptedBackend) MaxConcurrentGenerations() int64 { return b.maxActive.Load() }

// Generate implements Backend, replaying the matched response one
// whitespace-delimited token at a time.
func (b *ScriptedBackend) Generate(ctx context.Context, prompt string, maxTokens int, onToken func(string) error) error {
	b.genCalls.Add(1)
	active := b.generating.Add(1)
	defer b.generating.Add(-1)
	for {
		max := b.maxActive.Load()
		if active <= max || b.maxActive.CompareAndSwap(max, active) {
			break
		}
	}

	response := b.pick(prompt)
	tokens := tokenize(response)
	if maxTokens > 0 && len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	for _, tok := range tokens {
		if b.TokenDelay > 0 {
			select {
			case <-time.After(b.TokenDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func (b *ScriptedBackend) pick(prompt string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.script {
		if strings.Contains(prompt, e.match) {
			return e.response
		}
	}
	return b.DefaultResponse
}

// tokenize splits text into word tokens that keep their trailing
// whitespace, so replay concatenates back to the original.
func tokenize(text string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !isSpace {
			tokens = append(tokens, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}
