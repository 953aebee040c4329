// Package agent is the turn driver: it runs exactly one assistant turn
// end-to-end on one thread. It is the only component that interprets
// the event log for conversational purposes — composing prompts,
// deciding when to call a tool, and resolving policy and approval
// before that tool ever runs.
//
// A Driver owns no conversation state of its own between turns; every
// fact it needs (open tool calls, pending approvals, token totals) is
// re-derived from internal/thread.Manager.Replay at the start of each
// turn. The event log, not an in-process cache, is the source of
// truth.
package agent
