package agent

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/laceai/lace-core/internal/provider"
	"github.com/laceai/lace-core/internal/thread"
	"github.com/laceai/lace-core/pkg/types"
)

const (
	// compactionThreshold triggers a summarization pass once a thread's
	// accumulated token usage crosses this fraction of the active
	// model's context window.
	compactionThreshold = 0.75

	// compactionMinEventsToKeep is the number of most recent events left
	// out of compaction, verbatim, so the turn in progress keeps its
	// immediate context.
	compactionMinEventsToKeep = 8

	compactionSummaryMaxTokens = 2000

	// compactionSummaryKey and compactionCutoffKey are the Thread
	// metadata keys a compaction pass writes: the summary text, and the
	// id of the last Event it folded into that summary.
	compactionSummaryKey = "compactionSummary"
	compactionCutoffKey  = "compactionCutoffEventID"
)

const compactionSystemPrompt = `You are a conversation summarizer. Create a concise summary of the conversation that preserves key context for continuing the discussion.

Focus on:
1. What was accomplished
2. Current work in progress
3. Files involved
4. Next steps
5. Any key user requests or constraints

Be concise but detailed enough that work can continue seamlessly.`

// maybeCompact summarizes a thread's older events once view.TotalTokens
// crosses compactionThreshold of model's context window, storing the
// summary and a cutoff event id in the Thread's metadata rather than
// relying on the SYSTEM_NOTE event being replayed back into history:
// ConvertEventsToEinoMessages has no case for EventSystemNote, so the
// summary re-enters composed history through composeHistory instead. The
// SYSTEM_NOTE event is still appended, as the replay-visible audit trail
// of when compaction ran. Returns the view unchanged (with no error) if
// compaction does not apply or fails — a failed summarization pass is
// not a reason to fail the turn.
func (d *Driver) maybeCompact(ctx context.Context, threadID string, view *thread.ReplayView, model *types.Model) *thread.ReplayView {
	if model == nil || model.ContextLength <= 0 {
		return view
	}
	if float64(view.TotalTokens.Input+view.TotalTokens.Output) < float64(model.ContextLength)*compactionThreshold {
		return view
	}
	if len(view.Events) <= compactionMinEventsToKeep {
		return view
	}

	toSummarize := view.Events[:len(view.Events)-compactionMinEventsToKeep]
	cutoff := toSummarize[len(toSummarize)-1].ID

	history, err := provider.ConvertEventsToEinoMessages(toSummarize)
	if err != nil {
		return view
	}

	prov, err := d.providers.Get(model.ProviderID)
	if err != nil {
		return view
	}

	var transcript strings.Builder
	for _, m := range history {
		fmt.Fprintf(&transcript, "%s: %s\n\n", m.Role, m.Content)
	}
	transcript.WriteString("Summarize the conversation above.")

	stream, err := prov.CreateCompletion(ctx, &provider.CompletionRequest{
		Model: model.ID,
		Messages: []*schema.Message{
			{Role: schema.System, Content: compactionSystemPrompt},
			{Role: schema.User, Content: transcript.String()},
		},
		MaxTokens: compactionSummaryMaxTokens,
	})
	if err != nil {
		return view
	}
	defer stream.Close()

	var summary strings.Builder
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return view
		}
		summary.WriteString(msg.Content)
	}
	if summary.Len() == 0 {
		return view
	}

	if err := d.threads.SetMetadata(ctx, threadID, compactionSummaryKey, summary.String()); err != nil {
		return view
	}
	if err := d.threads.SetMetadata(ctx, threadID, compactionCutoffKey, cutoff); err != nil {
		return view
	}
	if _, err := d.threads.AppendEvent(ctx, threadID, types.EventSystemNote, types.SystemNoteData{
		Text: fmt.Sprintf("compacted history through event %s", cutoff),
	}); err != nil {
		return view
	}

	compacted, err := d.threads.Replay(ctx, threadID)
	if err != nil {
		return view
	}
	return compacted
}

// composeHistory builds the Provider message history for view: any
// events before a stored compaction cutoff are dropped and replaced with
// the stored summary, injected as a leading system message.
func composeHistory(th *types.Thread, view *thread.ReplayView) ([]*schema.Message, error) {
	events := view.Events
	var summary string

	if th != nil && th.Metadata != nil {
		if cutoff, ok := th.Metadata[compactionCutoffKey].(string); ok && cutoff != "" {
			events = eventsAfter(view.Events, cutoff)
		}
		if s, ok := th.Metadata[compactionSummaryKey].(string); ok {
			summary = s
		}
	}

	history, err := provider.ConvertEventsToEinoMessages(events)
	if err != nil {
		return nil, err
	}
	if summary == "" {
		return history, nil
	}

	note := &schema.Message{
		Role:    schema.System,
		Content: "Summary of earlier conversation:\n" + summary,
	}
	return append([]*schema.Message{note}, history...), nil
}

// eventsAfter returns the events following the one with id cutoffID, or
// all of events if cutoffID is absent (it was already folded away by an
// earlier compaction pass, or the thread predates compaction entirely).
func eventsAfter(events []*types.Event, cutoffID string) []*types.Event {
	for i, e := range events {
		if e.ID == cutoffID {
			return events[i+1:]
		}
	}
	return events
}
