package questionnaire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/logging"
	"vigil/internal/risk"
)

func init() { logging.UseNop() }

func answerAll(t *testing.T, e *Engine, byIndex map[int]bool) Answers {
	t.Helper()
	for !e.Done() {
		q := e.CurrentQuestion()
		e.SubmitAnswer(byIndex[q.Index])
	}
	return e.Finalize()
}

func TestBranch_NegativeIdeationSkipsToQuestionSix(t *testing.T) {
	e := NewEngine()
	require.Equal(t, 1, e.CurrentQuestion().Index)

	e.SubmitAnswer(false) // Q1
	require.Equal(t, 2, e.CurrentQuestion().Index)

	hasNext := e.SubmitAnswer(false) // Q2 negative: branch
	require.True(t, hasNext)
	assert.Equal(t, 6, e.CurrentQuestion().Index)

	hasNext = e.SubmitAnswer(false)
	assert.False(t, hasNext)
	assert.True(t, e.Done())

	a := e.Finalize()
	assert.True(t, a.BranchSkipped)
	assert.Len(t, a.ByIndex, 3)
}

func TestBranch_PositiveIdeationVisitsAllFollowUps(t *testing.T) {
	e := NewEngine()
	visited := []int{}
	for !e.Done() {
		visited = append(visited, e.CurrentQuestion().Index)
		e.SubmitAnswer(e.CurrentQuestion().Index == 2)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, visited)
	assert.False(t, e.Finalize().BranchSkipped)
}

func TestGoBack_RestoresBranchPoint(t *testing.T) {
	// Branch taken: Q6 -> back -> Q2.
	e := NewEngine()
	e.SubmitAnswer(false) // Q1
	e.SubmitAnswer(false) // Q2 negative
	require.Equal(t, 6, e.CurrentQuestion().Index)
	e.GoBack()
	assert.Equal(t, 2, e.CurrentQuestion().Index)
	_, reanswerable := e.Finalize().ByIndex[2]
	assert.False(t, reanswerable, "Q2 answer should be discarded on GoBack")

	// Branch not taken: Q6 -> back -> Q5.
	e = NewEngine()
	e.SubmitAnswer(false) // Q1
	e.SubmitAnswer(true)  // Q2 positive
	e.SubmitAnswer(false) // Q3
	e.SubmitAnswer(false) // Q4
	e.SubmitAnswer(false) // Q5
	require.Equal(t, 6, e.CurrentQuestion().Index)
	e.GoBack()
	assert.Equal(t, 5, e.CurrentQuestion().Index)
}

func TestGoBack_AtFirstQuestionIsNoOp(t *testing.T) {
	e := NewEngine()
	e.GoBack()
	assert.Equal(t, 1, e.CurrentQuestion().Index)
}

func TestGoBack_AfterCompletionReopensLastQuestion(t *testing.T) {
	e := NewEngine()
	answerAll(t, e, map[int]bool{})
	require.True(t, e.Done())
	e.GoBack()
	assert.False(t, e.Done())
	assert.Equal(t, 6, e.CurrentQuestion().Index)
}

func TestComputeFloorTier(t *testing.T) {
	tests := []struct {
		name    string
		answers map[int]bool
		want    risk.Tier
	}{
		{"intent alone is crisis", map[int]bool{2: true, 4: true}, risk.TierCrisis},
		{"plan alone is crisis", map[int]bool{2: true, 5: true}, risk.TierCrisis},
		{"recent attempt is high monitoring", map[int]bool{6: true}, risk.TierHighMonitoring},
		{"passive wish alone is moderate", map[int]bool{1: true}, risk.TierModerate},
		{"ideation alone is moderate", map[int]bool{2: true}, risk.TierModerate},
		{"method alone is moderate", map[int]bool{2: true, 3: true}, risk.TierModerate},
		{"all negative is low", map[int]bool{}, risk.TierLow},
		{"intent outranks recent attempt", map[int]bool{2: true, 4: true, 6: true}, risk.TierCrisis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			a := answerAll(t, e, tt.answers)
			assert.Equal(t, tt.want, ComputeFloorTier(a))
		})
	}
}

func TestSummary(t *testing.T) {
	e := NewEngine()
	a := answerAll(t, e, map[int]bool{1: true})
	s := Summary(a)
	assert.Contains(t, s, "YES")
	assert.Contains(t, s, "wished you were dead")

	assert.Equal(t, "Screening not completed.", Summary(Answers{}))
}
