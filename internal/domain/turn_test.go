package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Role
		wantErr bool
	}{
		{name: "user", input: "user", want: RoleUser},
		{name: "assistant mixed case", input: "Assistant", want: RoleAssistant},
		{name: "system padded", input: " system ", want: RoleSystem},
		{name: "unknown role rejected", input: "narrator", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTurnResponseTextStripsReasoning(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "plain text untouched", text: "hello world", want: "hello world"},
		{name: "single block removed", text: "<think>hmm</think>hello", want: "hello"},
		{name: "block in the middle", text: "a <think>x</think> b", want: "a  b"},
		{name: "multiple blocks", text: "<think>1</think>one<think>2</think>two", want: "onetwo"},
		{name: "unterminated block swallows tail", text: "lead<think>never closed", want: "lead"},
		{name: "reasoning only yields empty", text: "<think>all of it</think>", want: ""},
		{name: "whitespace trimmed", text: "  spaced out \n", want: "spaced out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn := Turn{Text: tt.text}
			assert.Equal(t, tt.want, turn.ResponseText())
		})
	}
}

func TestConversationAppendAssignsStableIDs(t *testing.T) {
	c := NewConversation()
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	first := c.Append(RoleUser, "hi", now)
	second := c.Append(RoleAssistant, "hello", now)

	assert.Equal(t, TurnID(1), first.ID)
	assert.Equal(t, TurnID(2), second.ID)
	assert.Equal(t, 2, c.Len())

	got, ok := c.Get(second.ID)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Text)
}

func TestConversationAppendTextGrowsTurn(t *testing.T) {
	c := NewConversation()
	turn := c.Append(RoleAssistant, "", time.Time{})

	require.True(t, c.AppendText(turn.ID, "par"))
	require.True(t, c.AppendText(turn.ID, "tial"))

	got, ok := c.Get(turn.ID)
	require.True(t, ok)
	assert.Equal(t, "partial", got.Text)
}

func TestConversationRemoveClearsMatchingAnchor(t *testing.T) {
	c := NewConversation()
	first := c.Append(RoleUser, "a", time.Time{})
	second := c.Append(RoleAssistant, "b", time.Time{})
	c.SetAnchor(second.ID)

	require.True(t, c.Remove(second.ID))

	assert.Zero(t, c.Anchor())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, -1, c.IndexOf(second.ID))
	assert.Equal(t, 0, c.IndexOf(first.ID))
}

func TestConversationRemoveUnrelatedTurnKeepsAnchor(t *testing.T) {
	c := NewConversation()
	first := c.Append(RoleUser, "a", time.Time{})
	second := c.Append(RoleAssistant, "b", time.Time{})
	c.SetAnchor(second.ID)

	require.True(t, c.Remove(first.ID))

	assert.Equal(t, second.ID, c.Anchor())
}

func TestConversationClearResetsAnchorButNotIDs(t *testing.T) {
	c := NewConversation()
	c.Append(RoleUser, "a", time.Time{})
	c.SetAnchor(1)

	c.Clear()

	assert.Zero(t, c.Len())
	assert.Zero(t, c.Anchor())

	next := c.Append(RoleUser, "b", time.Time{})
	assert.Equal(t, TurnID(2), next.ID)
}
