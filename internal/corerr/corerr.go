// Package corerr defines the error kinds the Conversation Core produces or
// reacts to, per the error handling design. Each kind is a sentinel
// identity, not a type hierarchy: callers compare with errors.Is and wrap
// with fmt.Errorf("...: %w", corerr.X) the way the rest of this codebase
// wraps storage.ErrNotFound.
package corerr

import "errors"

var (
	// ErrStorageUnavailable means the Event Store failed; the caller
	// aborts the current operation. Never retried internally.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrThreadNotFound  = errors.New("thread not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrProjectNotFound = errors.New("project not found")

	// ErrToolNotFound means the registry holds no tool under the given
	// name. Surfaced by the Agent as a failed TOOL_RESULT, never a crash.
	ErrToolNotFound = errors.New("tool not found")

	// ErrPolicyDenied and ErrToolDisabled are materialized by the Agent
	// as a denied TOOL_RESULT; no tool execution occurs.
	ErrPolicyDenied = errors.New("denied by policy")
	ErrToolDisabled = errors.New("tool disabled")

	// ErrApprovalTimeout is synthesized into a denied TOOL_RESULT. A late
	// response event, if it arrives, is still recorded but does not
	// retroactively change the result.
	ErrApprovalTimeout = errors.New("approval timeout")

	// ErrNoPendingApproval and ErrAlreadyDecided are returned to the
	// submitter only; they never affect a thread's resolved state.
	ErrNoPendingApproval = errors.New("no pending approval for call")
	ErrAlreadyDecided    = errors.New("approval already decided")

	// ErrProviderError is recorded as a terminal assistant message or a
	// SYSTEM_NOTE; the turn ends.
	ErrProviderError = errors.New("provider error")

	// ErrCancelled marks a tool result produced because the turn's
	// cancellation signal fired.
	ErrCancelled = errors.New("cancelled")
)

// InvalidArgumentsError reports that a tool call's arguments failed
// structural validation against the tool's schema. Surfaced as a failed
// TOOL_RESULT, never a crash.
type InvalidArgumentsError struct {
	ToolName string
	Reason   string
}

func (e *InvalidArgumentsError) Error() string {
	return "invalid arguments for tool " + e.ToolName + ": " + e.Reason
}

// Is lets errors.Is(err, ErrInvalidArguments) match any *InvalidArgumentsError,
// the way callers test for the kind without caring about the specific reason.
func (e *InvalidArgumentsError) Is(target error) bool {
	return target == ErrInvalidArguments
}

// ErrInvalidArguments is the sentinel identity for InvalidArgumentsError,
// usable with errors.Is against a wrapped *InvalidArgumentsError.
var ErrInvalidArguments = errors.New("invalid arguments")
