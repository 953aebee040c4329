// Package types provides the core data model shared across the
// Conversation Core: Project, Session, Thread and Event.
package types

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionArchived  SessionStatus = "archived"
	SessionCompleted SessionStatus = "completed"
)

// Session is a work context within a Project. It owns Threads and carries
// the configuration that the Policy Resolver merges with the owning
// Project's configuration: an optional tools allowlist, a toolPolicies
// mapping, and environment variables threaded into every Tool Context
// built for its Threads.
type Session struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"projectID"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`

	// EnvironmentVariables overlay the process environment for every
	// Tool Context built for this session's threads.
	EnvironmentVariables map[string]string `json:"environmentVariables,omitempty"`

	// ToolPolicies maps a tool name to one of allow/require-approval/
	// deny/disable, merged with the owning Project's by the Policy
	// Resolver (session entries win on matching keys).
	ToolPolicies map[string]string `json:"toolPolicies,omitempty"`

	// ToolAllowlist, if non-nil, restricts advertised tools to this set
	// at either the project or session level.
	ToolAllowlist []string `json:"toolAllowlist,omitempty"`

	// WorkingDirectory, if set, overrides the owning Project's.
	WorkingDirectory string `json:"workingDirectory,omitempty"`

	Status    SessionStatus `json:"status"`
	CreatedAt int64         `json:"createdAt"`
	UpdatedAt int64         `json:"updatedAt"`
}
