package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator()
	require.NoError(t, err)
	return e
}

func TestCompile(t *testing.T) {
	e := newEvaluator(t)

	assert.NoError(t, e.Compile(`party_size >= 4 && tour_id.startsWith("balloon-")`))
	assert.NoError(t, e.Compile(`customer_id in ["vip-1", "vip-2"]`))

	assert.Error(t, e.Compile(`party_size >=`), "syntax error")
	assert.Error(t, e.Compile(`unknown_var == 1`), "undeclared variable")
	assert.Error(t, e.Compile(`party_size + 1`), "non-bool result")
}

func TestEval(t *testing.T) {
	e := newEvaluator(t)
	facts := Facts{
		TourID:          "balloon-sunrise",
		OptionID:        "private",
		PartySize:       5,
		BasePrice:       45000,
		TravelDaysAhead: 12,
	}

	tests := []struct {
		rule string
		want bool
	}{
		{"", true},
		{`party_size >= 4`, true},
		{`party_size >= 6`, false},
		{`base_price > 50000 || option_id == "private"`, true},
		{`travel_days_ahead >= 0 && travel_days_ahead < 14`, true},
		{`customer_id == ""`, true},
	}
	for _, tc := range tests {
		t.Run(tc.rule, func(t *testing.T) {
			got, err := e.Eval(tc.rule, facts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatches_FailsClosed(t *testing.T) {
	e := newEvaluator(t)
	assert.False(t, e.Matches(`party_size >=`, Facts{}))
	assert.False(t, e.Matches(`10 / (party_size - party_size) > 1`, Facts{PartySize: 3}))
	assert.True(t, e.Matches(`party_size == 3`, Facts{PartySize: 3}))
}

func TestEval_CachesPrograms(t *testing.T) {
	e := newEvaluator(t)
	rule := `item_count >= 2`
	_, err := e.Eval(rule, Facts{ItemCount: 2})
	require.NoError(t, err)
	_, err = e.Eval(rule, Facts{ItemCount: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, e.programs.Len())
}

func TestEval_ProgramCacheIsBounded(t *testing.T) {
	e, err := newEvaluatorWithCapacity(2)
	require.NoError(t, err)

	for _, rule := range []string{`party_size >= 2`, `party_size >= 3`, `party_size >= 4`} {
		_, err := e.Eval(rule, Facts{PartySize: 3})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, e.programs.Len())
	assert.False(t, e.programs.Contains(`party_size >= 2`))
	assert.True(t, e.programs.Contains(`party_size >= 4`))

	// An evicted rule compiles again on demand.
	assert.False(t, e.Matches(`party_size >= 2`, Facts{PartySize: 1}))
	assert.True(t, e.Matches(`party_size >= 2`, Facts{PartySize: 2}))
}
