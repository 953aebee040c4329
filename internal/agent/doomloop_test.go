package agent

import (
	"encoding/json"
	"testing"

	"github.com/laceai/lace-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolCallEvent(t *testing.T, toolName string, arguments map[string]any) *types.Event {
	t.Helper()
	data, err := json.Marshal(types.ToolCallData{ToolName: toolName, Arguments: arguments})
	require.NoError(t, err)
	return &types.Event{Type: types.EventToolCall, Data: data}
}

func TestRepeatedToolCallFalseBelowThreshold(t *testing.T) {
	events := []*types.Event{
		toolCallEvent(t, "write", map[string]any{"path": "a"}),
	}
	assert.False(t, repeatedToolCall(events, "write", map[string]any{"path": "a"}))
}

func TestRepeatedToolCallTrueAtThreshold(t *testing.T) {
	events := []*types.Event{
		toolCallEvent(t, "write", map[string]any{"path": "a"}),
		toolCallEvent(t, "write", map[string]any{"path": "a"}),
	}
	assert.True(t, repeatedToolCall(events, "write", map[string]any{"path": "a"}))
}

func TestRepeatedToolCallIgnoresDifferingArguments(t *testing.T) {
	events := []*types.Event{
		toolCallEvent(t, "write", map[string]any{"path": "a"}),
		toolCallEvent(t, "write", map[string]any{"path": "b"}),
	}
	assert.False(t, repeatedToolCall(events, "write", map[string]any{"path": "a"}))
}

func TestRepeatedToolCallOnlyLooksAtTrailingRun(t *testing.T) {
	events := []*types.Event{
		toolCallEvent(t, "write", map[string]any{"path": "a"}),
		toolCallEvent(t, "read", map[string]any{"path": "a"}),
		toolCallEvent(t, "write", map[string]any{"path": "a"}),
	}
	assert.False(t, repeatedToolCall(events, "write", map[string]any{"path": "a"}))
}

func TestRepeatedToolCallIgnoresNonToolCallEvents(t *testing.T) {
	note, err := json.Marshal(types.SystemNoteData{Text: "hi"})
	require.NoError(t, err)
	events := []*types.Event{
		toolCallEvent(t, "write", map[string]any{"path": "a"}),
		{Type: types.EventSystemNote, Data: note},
		toolCallEvent(t, "write", map[string]any{"path": "a"}),
	}
	assert.True(t, repeatedToolCall(events, "write", map[string]any{"path": "a"}))
}
