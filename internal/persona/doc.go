// Package persona provides multi-agent persona configuration and management.
//
// This package implements a flexible persona system that supports different
// operation modes and tool advertisement. Personas can operate as primary
// agents (user-facing) or subagents (invoked by other agents). Whether a tool
// call is actually permitted to run is decided elsewhere, by the policy
// resolver; a persona only decides what it advertises to the model.
//
// # Agent Types
//
// The package provides four built-in personas:
//
//   - build: Primary agent for executing tasks, writing code, and making changes.
//     Has full tool access.
//   - plan: Primary agent for analysis and exploration without making changes.
//     Has edit and write disabled; read, glob, grep, ls and bash stay enabled.
//   - general: Subagent for general-purpose searches and exploration.
//   - explore: Fast subagent specialized for codebase exploration.
//
// # Agent Modes
//
// Agents operate in one of three modes:
//
//   - ModePrimary: Can be selected as the main agent for a session
//   - ModeSubagent: Can only be invoked by other agents via the Task tool
//   - ModeAll: Can operate in both primary and subagent contexts
//
// # Tool Access Control
//
// Each agent has a Tools map that controls which tools are available. Tools can be
// enabled or disabled using exact names or wildcard patterns:
//
//	agent.Tools = map[string]bool{
//	    "*":     true,   // Enable all tools by default
//	    "bash":  false,  // Disable bash specifically
//	    "mcp_*": true,   // Enable all MCP tools
//	}
//
// The [Agent.ToolEnabled] method checks tool availability, supporting glob patterns
// including doublestar (**) for complex matching.
//
// # Registry
//
// The [Registry] type manages agent configurations with thread-safe operations:
//
//	registry := persona.NewRegistry()  // Includes built-in agents
//	registry.Register(customAgent)   // Add custom agent
//	agent, err := registry.Get("build")
//	primaryAgents := registry.ListPrimary()
//	subagents := registry.ListSubagents()
//
// # Custom Configuration
//
// Custom agents can be loaded from configuration using [Registry.LoadFromConfig].
// Configurations can extend or override built-in agents:
//
//	config := map[string]persona.AgentConfig{
//	    "build": {
//	        Temperature: 0.7,
//	    },
//	    "custom": {
//	        Description: "Custom agent",
//	        Mode:        persona.ModePrimary,
//	        Tools:       map[string]bool{"read": true, "glob": true},
//	    },
//	}
//	registry.LoadFromConfig(config)
package persona
