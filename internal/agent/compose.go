package agent

import (
	"fmt"
	"strings"

	"github.com/laceai/lace-core/internal/persona"
	"github.com/laceai/lace-core/internal/policy"
	"github.com/laceai/lace-core/internal/provider"
	"github.com/laceai/lace-core/pkg/types"
)

// projectPolicyConfig extracts the Policy Resolver's Config from a
// Project's free-form Configuration. Unlike Session, Project carries no
// dedicated toolPolicies/toolAllowlist fields — only the opaque
// Configuration map — so this is the one documented convention for
// reading them back out: a "toolPolicies" entry shaped like
// map[string]string and a "toolAllowlist" entry shaped like []string
// (or []any of strings, as json.Unmarshal into map[string]any produces).
func projectPolicyConfig(p *types.Project) policy.Config {
	var cfg policy.Config
	if p == nil || p.Configuration == nil {
		return cfg
	}

	if raw, ok := p.Configuration["toolPolicies"]; ok {
		switch m := raw.(type) {
		case map[string]string:
			cfg.ToolPolicies = make(map[string]types.Policy, len(m))
			for k, v := range m {
				cfg.ToolPolicies[k] = types.Policy(v)
			}
		case map[string]any:
			cfg.ToolPolicies = make(map[string]types.Policy, len(m))
			for k, v := range m {
				if s, ok := v.(string); ok {
					cfg.ToolPolicies[k] = types.Policy(s)
				}
			}
		}
	}
	if raw, ok := p.Configuration["toolAllowlist"]; ok {
		if list, ok := raw.([]string); ok {
			cfg.Allowlist = append([]string(nil), list...)
		}
		if list, ok := raw.([]any); ok {
			cfg.Allowlist = make([]string, 0, len(list))
			for _, v := range list {
				if s, ok := v.(string); ok {
					cfg.Allowlist = append(cfg.Allowlist, s)
				}
			}
		}
	}
	return cfg
}

// sessionPolicyConfig reads policy.Config straight from Session's typed
// fields.
func sessionPolicyConfig(s *types.Session) policy.Config {
	if s == nil {
		return policy.Config{}
	}
	cfg := policy.Config{Allowlist: s.ToolAllowlist}
	if s.ToolPolicies != nil {
		cfg.ToolPolicies = make(map[string]types.Policy, len(s.ToolPolicies))
		for k, v := range s.ToolPolicies {
			cfg.ToolPolicies[k] = types.Policy(v)
		}
	}
	return cfg
}

// workingDirectory resolves the Tool Context working directory: a
// session override wins over the owning project's.
func workingDirectory(p *types.Project, s *types.Session) string {
	if s != nil && s.WorkingDirectory != "" {
		return s.WorkingDirectory
	}
	if p != nil {
		return p.WorkingDirectory
	}
	return ""
}

// environment copies a session's EnvironmentVariables for the Tool
// Context. The process environment is not included here; tools that
// spawn a process (bash) layer this map over os.Environ() themselves.
func environment(s *types.Session) map[string]string {
	env := make(map[string]string)
	if s == nil {
		return env
	}
	for k, v := range s.EnvironmentVariables {
		env[k] = v
	}
	return env
}

// buildSystemPrompt composes the persona prompt plus project/session
// guidance: persona prompt, then the working directory and the project
// and session names. Provider- and model-specific headers are left to the
// Provider implementation rather than folded in here — a Provider
// already knows its own house style.
func buildSystemPrompt(ag *persona.Agent, p *types.Project, s *types.Session) string {
	var parts []string

	if ag != nil && ag.Prompt != "" {
		parts = append(parts, ag.Prompt)
	}

	var env strings.Builder
	env.WriteString("Working directory: ")
	env.WriteString(workingDirectory(p, s))
	if p != nil {
		fmt.Fprintf(&env, "\nProject: %s", p.Name)
	}
	if s != nil {
		fmt.Fprintf(&env, "\nSession: %s", s.Name)
	}
	parts = append(parts, env.String())

	return strings.Join(parts, "\n\n")
}

// advertisedToolInfos returns the tool descriptors the Provider should
// see this turn: every registered tool whose effective policy is not
// `disable` and that the persona advertises: tools whose resolved
// policy is disable are not advertised to the Provider.
func (d *Driver) advertisedToolInfos(proj *types.Project, sess *types.Session, ag *persona.Agent) ([]provider.ToolInfo, error) {
	projCfg := projectPolicyConfig(proj)
	sessCfg := sessionPolicyConfig(sess)

	var infos []provider.ToolInfo
	for _, t := range d.tools.List() {
		id := t.ID()
		if policy.Resolve(projCfg, sessCfg, id, false) == types.PolicyDisable {
			continue
		}
		if ag != nil && !ag.ToolEnabled(id) {
			continue
		}
		infos = append(infos, provider.ToolInfo{
			Name:        id,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return infos, nil
}
