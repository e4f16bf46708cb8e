package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byLength(s string) int { return len(s) }

func TestSelectWindowSlidesWithRunway(t *testing.T) {
	turns := []Turn{
		{ID: 1, Role: RoleUser, Text: strings.Repeat("a", 30)},
		{ID: 2, Role: RoleAssistant, Text: strings.Repeat("b", 30)},
		{ID: 3, Role: RoleUser, Text: strings.Repeat("c", 30)},
	}
	req := WindowRequest{Budget: 100, RunwayReserve: 20, PerTurnOverhead: 10}

	sel, err := SelectWindow(turns, 0, req, byLength)
	require.NoError(t, err)

	require.Len(t, sel.Turns, 2)
	assert.Equal(t, TurnID(2), sel.Turns[0].ID)
	assert.Equal(t, TurnID(3), sel.Turns[1].ID)
	assert.Equal(t, TurnID(2), sel.Anchor)
	assert.Equal(t, 1, sel.Start)
	assert.Equal(t, 80, sel.TotalCost)
}

func TestSelectWindowAnchorStableWhileUnderBudget(t *testing.T) {
	turns := []Turn{
		{ID: 1, Role: RoleUser, Text: strings.Repeat("a", 30)},
		{ID: 2, Role: RoleAssistant, Text: strings.Repeat("b", 30)},
	}
	req := WindowRequest{Budget: 200, RunwayReserve: 20, PerTurnOverhead: 10}

	first, err := SelectWindow(turns, 0, req, byLength)
	require.NoError(t, err)
	assert.Equal(t, TurnID(1), first.Anchor)

	turns = append(turns, Turn{ID: 3, Role: RoleUser, Text: strings.Repeat("c", 30)})

	second, err := SelectWindow(turns, first.Anchor, req, byLength)
	require.NoError(t, err)
	assert.Equal(t, TurnID(1), second.Anchor)
	assert.Len(t, second.Turns, 3)
}

func TestSelectWindowAnchoredStartSkipsOlderTurns(t *testing.T) {
	turns := []Turn{
		{ID: 1, Role: RoleUser, Text: strings.Repeat("a", 50)},
		{ID: 2, Role: RoleAssistant, Text: strings.Repeat("b", 30)},
		{ID: 3, Role: RoleUser, Text: strings.Repeat("c", 30)},
	}
	req := WindowRequest{Budget: 200, PerTurnOverhead: 10}

	sel, err := SelectWindow(turns, 2, req, byLength)
	require.NoError(t, err)

	require.Len(t, sel.Turns, 2)
	assert.Equal(t, TurnID(2), sel.Turns[0].ID)
	assert.Equal(t, TurnID(2), sel.Anchor)
	assert.Equal(t, 80, sel.TotalCost)
}

func TestSelectWindowExcludesEmptyResponseTurns(t *testing.T) {
	turns := []Turn{
		{ID: 1, Role: RoleUser, Text: "hello there"},
		{ID: 2, Role: RoleAssistant, Text: "<think>still working</think>"},
		{ID: 3, Role: RoleUser, Text: "are you done?"},
	}

	sel, err := SelectWindow(turns, 0, WindowRequest{Budget: 1000, PerTurnOverhead: 4}, byLength)
	require.NoError(t, err)

	require.Len(t, sel.Turns, 2)
	assert.Equal(t, TurnID(1), sel.Turns[0].ID)
	assert.Equal(t, TurnID(3), sel.Turns[1].ID)
	assert.Equal(t, TurnID(1), sel.Anchor)
	assert.Equal(t, 36, sel.TotalCost)
}

func TestSelectWindowKeepsLastTurnEvenOverRunwayLimit(t *testing.T) {
	turns := []Turn{
		{ID: 1, Role: RoleUser, Text: strings.Repeat("a", 80)},
		{ID: 2, Role: RoleAssistant, Text: strings.Repeat("b", 80)},
	}
	req := WindowRequest{Budget: 100, RunwayReserve: 50}

	sel, err := SelectWindow(turns, 0, req, byLength)
	require.NoError(t, err)

	require.Len(t, sel.Turns, 1)
	assert.Equal(t, TurnID(2), sel.Turns[0].ID)
	assert.Equal(t, TurnID(2), sel.Anchor)
	assert.Equal(t, 80, sel.TotalCost)
}

func TestSelectWindowBudgetUnsatisfiable(t *testing.T) {
	turns := []Turn{
		{ID: 1, Role: RoleUser, Text: strings.Repeat("a", 500)},
	}

	_, err := SelectWindow(turns, 0, WindowRequest{Budget: 100, RunwayReserve: 20, PerTurnOverhead: 10}, byLength)
	require.ErrorIs(t, err, ErrBudgetUnsatisfiable)
}

func TestSelectWindowStaleAnchorFallsBackToStart(t *testing.T) {
	turns := []Turn{
		{ID: 4, Role: RoleUser, Text: "aa"},
		{ID: 5, Role: RoleAssistant, Text: "bb"},
	}

	sel, err := SelectWindow(turns, 99, WindowRequest{Budget: 100, PerTurnOverhead: 1}, byLength)
	require.NoError(t, err)

	assert.Equal(t, TurnID(4), sel.Anchor)
	assert.Len(t, sel.Turns, 2)
}

func TestSelectWindowEmptyLog(t *testing.T) {
	sel, err := SelectWindow(nil, 7, WindowRequest{Budget: 100}, byLength)
	require.NoError(t, err)

	assert.Empty(t, sel.Turns)
	assert.Zero(t, sel.Anchor)
}

func TestTokenBudgetDerivation(t *testing.T) {
	tests := []struct {
		name       string
		capacity   int
		maxGen     int
		reserved   int
		wantBudget int
		wantRunway int
	}{
		{name: "bounded generation reserves its own length", capacity: 4096, maxGen: 512, reserved: 256, wantBudget: 3584, wantRunway: 256},
		{name: "unbounded generation reserves the buffer", capacity: 4096, maxGen: 0, reserved: 256, wantBudget: 3840, wantRunway: 256},
		{name: "runway falls back to the generation bound", capacity: 4096, maxGen: 512, reserved: 0, wantBudget: 3584, wantRunway: 512},
		{name: "reservation above capacity clamps to zero", capacity: 100, maxGen: 200, reserved: 0, wantBudget: 0, wantRunway: 200},
		{name: "nothing configured", capacity: 2048, maxGen: 0, reserved: 0, wantBudget: 2048, wantRunway: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budget, runway := TokenBudget(tt.capacity, tt.maxGen, tt.reserved)
			assert.Equal(t, tt.wantBudget, budget)
			assert.Equal(t, tt.wantRunway, runway)
		})
	}
}
