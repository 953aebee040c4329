package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/laceai/lace-core/pkg/types"
)

const todoreadDescription = `Use this tool to read your todo list`

// TodoReadTool reads the current todo list for a thread.
type TodoReadTool struct {
	workDir string
}

// NewTodoReadTool creates a new todoread tool.
func NewTodoReadTool(workDir string) *TodoReadTool {
	return &TodoReadTool{workDir: workDir}
}

func (t *TodoReadTool) ID() string          { return "todoread" }
func (t *TodoReadTool) Description() string { return todoreadDescription }

func (t *TodoReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {},
		"required": []
	}`)
}

func (t *TodoReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	if toolCtx == nil || toolCtx.Threads == nil {
		return nil, fmt.Errorf("todoread: no thread metadata store configured")
	}

	th, err := toolCtx.Threads.LoadThread(ctx, toolCtx.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	todos := []types.TodoInfo{}
	if raw, ok := th.Metadata[todoMetadataKey]; ok {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode todos: %w", err)
		}
		if err := json.Unmarshal(b, &todos); err != nil {
			return nil, fmt.Errorf("failed to decode todos: %w", err)
		}
	}

	// Count non-completed todos
	nonCompleted := 0
	for _, todo := range todos {
		if todo.Status != "completed" {
			nonCompleted++
		}
	}

	output, _ := json.MarshalIndent(todos, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d todos", nonCompleted),
		Output: string(output),
		Metadata: map[string]any{
			"todos": todos,
		},
	}, nil
}

func (t *TodoReadTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
