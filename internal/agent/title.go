package agent

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/laceai/lace-core/internal/provider"
	"github.com/laceai/lace-core/internal/thread"
	"github.com/laceai/lace-core/pkg/types"
)

// defaultSessionName is the placeholder a Session carries until a turn
// names it from the conversation.
const defaultSessionName = "New Session"

const titleSystemPrompt = `You are a title generator. You output ONLY a thread title. Nothing else.

Generate a brief title that would help the user find this conversation later.

Rules:
- A single line, <=50 characters
- No explanations
- Use -ing verbs for actions (Debugging, Implementing, Analyzing)
- Keep exact: technical terms, numbers, filenames
- Remove: the, this, my, a, an`

// maybeGenerateTitle names sess from threadID's first user message, once,
// the first time a turn finds it still on its default name. Failures are
// swallowed: naming a session is a side benefit of a turn, never a reason
// to fail one.
func (d *Driver) maybeGenerateTitle(ctx context.Context, sess *types.Session, view *thread.ReplayView) {
	if sess == nil || (sess.Name != "" && sess.Name != defaultSessionName) {
		return
	}

	userText := firstUserMessage(view.Events)
	if userText == "" {
		return
	}

	model, err := d.providers.DefaultModel()
	if err != nil {
		return
	}
	prov, err := d.providers.Get(model.ProviderID)
	if err != nil {
		return
	}

	stream, err := prov.CreateCompletion(ctx, &provider.CompletionRequest{
		Model: model.ID,
		Messages: []*schema.Message{
			{Role: schema.System, Content: titleSystemPrompt},
			{Role: schema.User, Content: "Generate a title for this conversation:\n\n" + userText},
		},
		MaxTokens: 50,
	})
	if err != nil {
		return
	}
	defer stream.Close()

	var title strings.Builder
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return
		}
		title.WriteString(msg.Content)
	}

	name := firstNonEmptyLine(title.String())
	if name == "" {
		return
	}
	if len(name) > 100 {
		name = name[:97] + "..."
	}

	_ = d.sessions.SetName(ctx, sess.ID, name)
}

func firstUserMessage(events []*types.Event) string {
	for _, e := range events {
		if e.Type != types.EventUserMessage {
			continue
		}
		var data types.UserMessageData
		if json.Unmarshal(e.Data, &data) != nil {
			continue
		}
		return data.Text
	}
	return ""
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
