package agent

import (
	"encoding/json"

	"github.com/laceai/lace-core/pkg/types"
)

// doomLoopThreshold is how many identical (tool, arguments) calls in a
// row mark a thread as looping.
const doomLoopThreshold = 3

// repeatedToolCall reports whether toolName/arguments would be the
// doomLoopThreshold-th identical call in a row on this thread. It is a
// pure function of the thread's replayed TOOL_CALL events rather than an
// in-memory counter, so the Policy Resolver input it feeds stays
// replay-deterministic: two Agents replaying the same thread compute the
// same answer.
func repeatedToolCall(events []*types.Event, toolName string, arguments map[string]any) bool {
	argsJSON, err := json.Marshal(arguments)
	if err != nil {
		return false
	}
	candidate := callSignature(toolName, argsJSON)

	need := doomLoopThreshold - 1
	var trailing []string
	for _, e := range events {
		if e.Type != types.EventToolCall {
			continue
		}
		var call types.ToolCallData
		if json.Unmarshal(e.Data, &call) != nil {
			continue
		}
		callArgsJSON, err := json.Marshal(call.Arguments)
		if err != nil {
			continue
		}
		trailing = append(trailing, callSignature(call.ToolName, callArgsJSON))
	}
	if len(trailing) < need {
		return false
	}

	for _, sig := range trailing[len(trailing)-need:] {
		if sig != candidate {
			return false
		}
	}
	return true
}

func callSignature(toolName string, argsJSON []byte) string {
	return toolName + "\x00" + string(argsJSON)
}
