package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"vigil/internal/logging"
)

// Mode selects between waiting for full completion and streaming with
// early termination.
type Mode struct {
	// Stream enables early termination on delimiters or char ceiling.
	Stream bool

	// StopDelimiters terminate streaming. Any listed delimiter counts.
	StopDelimiters []string

	// StopAfter is how many delimiter occurrences end the stream.
	// Zero means one.
	StopAfter int

	// MaxChars hard-stops the stream at a character ceiling. Zero means
	// no ceiling.
	MaxChars int

	// MaxTokens is the generation ceiling handed to the backend.
	MaxTokens int

	// BudgetToFirstToken narrows the timeout to cover only the wait for
	// the first token; once output starts flowing the budget no longer
	// applies and the stream runs to its stop condition.
	BudgetToFirstToken bool
}

// WaitForCompletion runs the prompt to natural completion.
func WaitForCompletion(maxTokens int) Mode {
	return Mode{MaxTokens: maxTokens}
}

// StreamUntilDelimiters stops generation once stopAfter occurrences of any
// delimiter have been observed, independent of the token ceiling.
func StreamUntilDelimiters(delims []string, stopAfter, maxTokens int) Mode {
	return Mode{
		Stream:         true,
		StopDelimiters: delims,
		StopAfter:      stopAfter,
		MaxTokens:      maxTokens,
	}
}

// Result is the outcome of one successful inference call.
type Result struct {
	Text    string
	Latency time.Duration
	// EarlyStopped is true when streaming terminated on a delimiter or
	// ceiling rather than natural completion.
	EarlyStopped bool
}

// errEarlyStop signals intentional stream termination through the token
// callback. Internal; converted to a successful Result.
var errEarlyStop = errors.New("early stop")

// Executor serializes access to the backend and enforces per-call budgets.
type Executor struct {
	backend Backend
	// slot is a one-deep semaphore: a call in flight blocks subsequent
	// callers, who queue on it context-aware rather than spinning.
	slot chan struct{}
}

// NewExecutor wraps the backend handle.
func NewExecutor(backend Backend) *Executor {
	return &Executor{
		backend: backend,
		slot:    make(chan struct{}, 1),
	}
}

// Run executes one prompt under the given budget. Exactly one call runs at
// a time; queued callers respect ctx while waiting. On timer expiry the
// generation context is cancelled and Run does not return until the
// backend has actually stopped, so the handle is free for the next call.
func (e *Executor) Run(ctx context.Context, prompt string, timeout time.Duration, mode Mode) (Result, error) {
	log := logging.Get(logging.CategoryInference)

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-e.slot }()

	// One lazy load attempt, then give up.
	if !e.backend.Loaded() {
		log.Infow("backend not loaded, attempting lazy load")
		if err := e.backend.Load(ctx); err != nil {
			log.Warnw("lazy load failed", "error", err)
			return Result{}, fmt.Errorf("lazy load: %v: %w", err, ErrBackendUnavailable)
		}
	}

	start := time.Now()
	gctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var buf strings.Builder
	hits := 0
	scanned := 0 // buf prefix already scanned for delimiters

	var firstOnce sync.Once
	firstToken := make(chan struct{})

	onToken := func(token string) error {
		firstOnce.Do(func() { close(firstToken) })
		buf.WriteString(token)
		if mode.MaxChars > 0 && buf.Len() >= mode.MaxChars {
			return errEarlyStop
		}
		if !mode.Stream || len(mode.StopDelimiters) == 0 {
			return nil
		}
		// Rescan only the unseen suffix, padded so a delimiter split
		// across tokens is still caught.
		text := buf.String()
		from := scanned - maxDelimLen(mode.StopDelimiters)
		if from < 0 {
			from = 0
		}
		window := text[from:]
		for _, d := range mode.StopDelimiters {
			hits += strings.Count(window, d) - strings.Count(text[from:scanned], d)
		}
		scanned = len(text)

		stopAfter := mode.StopAfter
		if stopAfter <= 0 {
			stopAfter = 1
		}
		if hits >= stopAfter {
			return errEarlyStop
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- e.backend.Generate(gctx, prompt, mode.MaxTokens, onToken)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	timerC := timer.C
	firstC := firstToken
	if !mode.BudgetToFirstToken {
		firstC = nil
	}

	var genErr error
wait:
	for {
		select {
		case genErr = <-done:
			// Natural completion, early stop, or backend failure.
			break wait
		case <-firstC:
			// Output started within budget; the stream now runs to its
			// own stop condition.
			timer.Stop()
			timerC = nil
			firstC = nil
		case <-timerC:
			// Budget elapsed: cancel generation and wait for the backend
			// to actually stop before returning, so the next call never
			// races a still-running generation.
			cancel()
			<-done
			log.Warnw("inference timed out", "budget", timeout)
			return Result{}, fmt.Errorf("budget %v elapsed: %w", timeout, ErrTimeout)
		case <-ctx.Done():
			cancel()
			<-done
			return Result{}, ctx.Err()
		}
	}

	latency := time.Since(start)
	switch {
	case genErr == nil:
		log.Debugw("inference complete", "latency", latency, "chars", buf.Len())
		return Result{Text: buf.String(), Latency: latency}, nil
	case errors.Is(genErr, errEarlyStop):
		text := buf.String()
		// The crossing token lands in the buffer before the ceiling check
		// fires; the ceiling is a hard cap, so trim the overshoot.
		if mode.MaxChars > 0 && len(text) > mode.MaxChars {
			text = text[:mode.MaxChars]
		}
		log.Debugw("inference early-stopped", "latency", latency, "chars", len(text))
		return Result{Text: text, Latency: latency, EarlyStopped: true}, nil
	case errors.Is(genErr, context.Canceled), errors.Is(genErr, context.DeadlineExceeded):
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("generation cancelled: %w", ErrTimeout)
	default:
		log.Errorw("backend generation failed", "error", genErr)
		return Result{}, fmt.Errorf("generate: %v: %w", genErr, ErrBackendUnavailable)
	}
}

func maxDelimLen(delims []string) int {
	n := 0
	for _, d := range delims {
		if len(d) > n {
			n = len(d)
		}
	}
	return n
}
