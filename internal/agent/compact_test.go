package agent

import (
	"testing"

	"github.com/laceai/lace-core/internal/thread"
	"github.com/laceai/lace-core/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestEventsAfterReturnsEventsFollowingCutoff(t *testing.T) {
	events := []*types.Event{
		{ID: "e1"},
		{ID: "e2"},
		{ID: "e3"},
	}
	assert.Equal(t, events[2:], eventsAfter(events, "e2"))
}

func TestEventsAfterReturnsAllWhenCutoffAbsent(t *testing.T) {
	events := []*types.Event{
		{ID: "e1"},
		{ID: "e2"},
	}
	assert.Equal(t, events, eventsAfter(events, "missing"))
}

func TestComposeHistoryWithNoCompactionMetadataUsesAllEvents(t *testing.T) {
	events := []*types.Event{userMessageEvent(t, "hello there")}
	view := &thread.ReplayView{Events: events}

	history, err := composeHistory(&types.Thread{}, view)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestComposeHistoryInjectsStoredSummaryAheadOfCutoffEvents(t *testing.T) {
	kept := userMessageEvent(t, "second message")
	view := &thread.ReplayView{Events: []*types.Event{
		{ID: "e1"},
		kept,
	}}
	th := &types.Thread{Metadata: map[string]any{
		compactionCutoffKey:  "e1",
		compactionSummaryKey: "earlier work summarized",
	}}

	history, err := composeHistory(th, view)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Contains(t, history[0].Content, "earlier work summarized")
}
