// Package policy is the Policy Resolver: a pure function that
// computes the effective policy for a (session, tool) pair by merging
// project and session configuration. It holds no state of its own and
// touches the Event Store only through the Config values its caller
// passes in.
package policy

import (
	"strings"

	"github.com/laceai/lace-core/pkg/types"
)

// Config is the subset of a Project's or Session's configuration the
// resolver reads: an optional tool allowlist and a tool-name -> policy
// override mapping. Both fields are nil-safe; an absent allowlist means
// "no allowlist restriction at that level".
type Config struct {
	Allowlist    []string
	ToolPolicies map[string]types.Policy
}

// Resolve computes the effective policy for toolName given the
// project's and session's configuration:
//
//  1. Bridged tool names ("serverId/name") are looked up both by the
//     full name and the bare name; the full name wins.
//  2. Start from the project's toolPolicies, overlay the session's
//     (session entries replace project entries key-wise; the rest of
//     each map survives the merge).
//  3. If either level configures an allowlist and toolName is absent
//     from the effective (unioned) allowlist, the policy is deny.
//  4. Otherwise the merged override applies; absent any override the
//     default is require-approval.
//
// repeatedCall escalates an otherwise-allowed policy to require-approval:
// the caller sets it when toolName's arguments match its last two calls
// on the thread in a row, so a looping Agent can't push the same
// destructive call through on a standing allow.
func Resolve(project, session Config, toolName string, repeatedCall bool) types.Policy {
	bareName := toolName
	if idx := strings.IndexByte(toolName, '/'); idx >= 0 {
		bareName = toolName[idx+1:]
	}

	merged := mergeToolPolicies(project.ToolPolicies, session.ToolPolicies)

	if hasAllowlist(project.Allowlist) || hasAllowlist(session.Allowlist) {
		if !inAllowlist(project.Allowlist, toolName, bareName) && !inAllowlist(session.Allowlist, toolName, bareName) {
			return types.PolicyDeny
		}
	}

	if p, ok := lookup(merged, toolName, bareName); ok {
		if repeatedCall && p == types.PolicyAllow {
			return types.PolicyRequireApproval
		}
		return p
	}

	return types.PolicyRequireApproval
}

func mergeToolPolicies(project, session map[string]types.Policy) map[string]types.Policy {
	merged := make(map[string]types.Policy, len(project)+len(session))
	for k, v := range project {
		merged[k] = v
	}
	for k, v := range session {
		merged[k] = v
	}
	return merged
}

func lookup(policies map[string]types.Policy, fullName, bareName string) (types.Policy, bool) {
	if p, ok := policies[fullName]; ok {
		return p, true
	}
	if fullName != bareName {
		if p, ok := policies[bareName]; ok {
			return p, true
		}
	}
	return "", false
}

func hasAllowlist(list []string) bool {
	return len(list) > 0
}

func inAllowlist(list []string, fullName, bareName string) bool {
	for _, entry := range list {
		if entry == fullName || entry == bareName {
			return true
		}
	}
	return false
}
