// Package inference owns the single exclusive handle to the on-device
// generative model. Every call funnels through one serialization point so
// two tasks never race the model's single-threaded generation state, and
// every call races a per-task timer that cancels generation on expiry -
// the backend is free for the next caller the moment a timeout returns.
package inference

import (
	"context"
	"errors"
)

// Backend is the opaque local inference handle. Implementations wrap the
// actual token generator (llama.cpp bindings, a subprocess, a test script).
//
// Generate must stream tokens to onToken as they are produced, must stop
// promptly when ctx is cancelled, and must stop and return the callback's
// error when onToken returns non-nil. Generation state is single-threaded;
// the Executor guarantees Generate is never called concurrently.
type Backend interface {
	// Load prepares model state. Called lazily by the executor; must be
	// idempotent.
	Load(ctx context.Context) error

	// Loaded reports whether the model is ready to generate.
	Loaded() bool

	// Generate produces up to maxTokens tokens for prompt.
	Generate(ctx context.Context, prompt string, maxTokens int, onToken func(token string) error) error
}

// Error taxonomy. Both are always recoverable via the fallback generator
// and are never surfaced to the end user as errors.
var (
	// ErrBackendUnavailable means the model is not loaded and the single
	// lazy-load attempt failed.
	ErrBackendUnavailable = errors.New("inference backend unavailable")

	// ErrTimeout means the per-task budget elapsed before generation
	// finished. Generation was cancelled, not abandoned.
	ErrTimeout = errors.New("inference timed out")
)
