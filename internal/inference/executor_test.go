package inference

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/logging"
)

func init() { logging.UseNop() }

func TestRun_WaitForCompletion(t *testing.T) {
	b := NewScriptedBackend("ORANGE\nSleep collapse with flat affect.")
	e := NewExecutor(b)

	res, err := e.Run(context.Background(), "triage please", time.Second, WaitForCompletion(128))
	require.NoError(t, err)
	assert.Equal(t, "ORANGE\nSleep collapse with flat affect.", res.Text)
	assert.False(t, res.EarlyStopped)
	assert.Greater(t, res.Latency, time.Duration(0))
}

func TestRun_LazyLoadHappensOnce(t *testing.T) {
	b := NewScriptedBackend("ok")
	e := NewExecutor(b)

	_, err := e.Run(context.Background(), "a", time.Second, WaitForCompletion(8))
	require.NoError(t, err)
	_, err = e.Run(context.Background(), "b", time.Second, WaitForCompletion(8))
	require.NoError(t, err)

	assert.Equal(t, int64(1), b.LoadCalls(), "loaded backend must not be reloaded")
}

func TestRun_LoadFailureIsBackendUnavailable(t *testing.T) {
	b := NewScriptedBackend("ok")
	b.LoadErr = errors.New("weights missing")
	e := NewExecutor(b)

	_, err := e.Run(context.Background(), "a", time.Second, WaitForCompletion(8))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, int64(1), b.LoadCalls(), "exactly one lazy load attempt per call")
	assert.Equal(t, int64(0), b.GenerateCalls())
}

// The timeout property: a call exceeding its budget returns control within
// budget + epsilon, and the backend is immediately available to the next
// caller with no residual lock.
func TestRun_TimeoutReturnsPromptlyAndFreesBackend(t *testing.T) {
	b := NewScriptedBackend(strings.Repeat("word ", 1000))
	b.TokenDelay = 20 * time.Millisecond
	e := NewExecutor(b)

	budget := 100 * time.Millisecond
	start := time.Now()
	_, err := e.Run(context.Background(), "slow", budget, WaitForCompletion(0))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, budget+300*time.Millisecond, "control must return within budget + epsilon")

	// Next call proceeds immediately.
	b.TokenDelay = 0
	b.Respond("fast", "done")
	res, err := e.Run(context.Background(), "fast", time.Second, WaitForCompletion(8))
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
}

func TestRun_SerializesConcurrentCallers(t *testing.T) {
	b := NewScriptedBackend("one two three four five")
	b.TokenDelay = 5 * time.Millisecond
	e := NewExecutor(b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Run(context.Background(), "p", 5*time.Second, WaitForCompletion(0))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8), b.GenerateCalls())
	assert.Equal(t, int64(1), b.MaxConcurrentGenerations(),
		"two tasks must never race generation state")
}

func TestRun_StreamStopsAfterTwoLines(t *testing.T) {
	// Triage calls stop as soon as tier word + rationale line are
	// observed, regardless of whatever the model would ramble afterwards.
	b := NewScriptedBackend("RED\nStated intent with plan.\nAdditional unwanted elaboration that keeps going.")
	e := NewExecutor(b)

	res, err := e.Run(context.Background(), "triage", time.Second,
		StreamUntilDelimiters([]string{"\n"}, 2, 512))
	require.NoError(t, err)
	assert.True(t, res.EarlyStopped)

	lines := strings.Split(strings.TrimRight(res.Text, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "RED", strings.TrimSpace(lines[0]))
	assert.NotContains(t, res.Text, "elaboration")
}

func TestRun_StreamStopsAtCharCeiling(t *testing.T) {
	b := NewScriptedBackend(strings.Repeat("section ", 200))
	e := NewExecutor(b)

	mode := StreamUntilDelimiters([]string{"<<END_REPORT>>"}, 1, 0)
	mode.MaxChars = 120
	res, err := e.Run(context.Background(), "report", time.Second, mode)
	require.NoError(t, err)
	assert.True(t, res.EarlyStopped)
	assert.Equal(t, 120, len(res.Text), "ceiling is a hard cap, never exceeded")
}

func TestRun_StreamStopsAtDelimiterAcrossTokens(t *testing.T) {
	b := NewScriptedBackend("Assessment complete. <<END_REPORT>> trailing junk")
	e := NewExecutor(b)

	res, err := e.Run(context.Background(), "report", time.Second,
		StreamUntilDelimiters([]string{"<<END_REPORT>>"}, 1, 0))
	require.NoError(t, err)
	assert.True(t, res.EarlyStopped)
	assert.NotContains(t, res.Text, "trailing junk")
}

func TestRun_FirstTokenBudget(t *testing.T) {
	// 30 tokens at 10ms each: the whole stream takes ~300ms, far past the
	// 100ms budget, but the first token lands well inside it.
	b := NewScriptedBackend(strings.Repeat("tok ", 30))
	b.TokenDelay = 10 * time.Millisecond
	e := NewExecutor(b)

	mode := WaitForCompletion(0)
	mode.BudgetToFirstToken = true
	res, err := e.Run(context.Background(), "report", 100*time.Millisecond, mode)
	require.NoError(t, err, "budget covers only the wait for output to start")
	assert.Contains(t, res.Text, "tok")

	// Without output the same budget still trips.
	slow := NewScriptedBackend("late")
	slow.TokenDelay = 300 * time.Millisecond
	_, err = NewExecutor(slow).Run(context.Background(), "report", 100*time.Millisecond, mode)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRun_CallerCancellation(t *testing.T) {
	b := NewScriptedBackend(strings.Repeat("word ", 1000))
	b.TokenDelay = 10 * time.Millisecond
	e := NewExecutor(b)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	_, err := e.Run(ctx, "p", 10*time.Second, WaitForCompletion(0))
	require.Error(t, err)
}
