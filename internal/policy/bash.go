package policy

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// BashCommand is a single parsed command invocation within a shell
// script: its name, its first non-flag argument (subcommand), and its
// remaining arguments.
type BashCommand struct {
	Name       string
	Subcommand string
	Args       []string
}

// ParseBashCommands splits a bash command line into its constituent
// command invocations (a pipeline or `&&`/`;`-chained script produces
// more than one), for bash-tool allowlist pattern matching.
func ParseBashCommands(command string) ([]BashCommand, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(false))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, err
	}

	var commands []BashCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if cmd := extractCommand(call); cmd != nil {
				commands = append(commands, *cmd)
			}
		}
		return true
	})
	return commands, nil
}

func extractCommand(call *syntax.CallExpr) *BashCommand {
	if len(call.Args) == 0 {
		return nil
	}
	cmd := &BashCommand{Name: wordToString(call.Args[0])}
	if cmd.Name == "" {
		return nil
	}
	for _, arg := range call.Args[1:] {
		s := wordToString(arg)
		cmd.Args = append(cmd.Args, s)
		if cmd.Subcommand == "" && !strings.HasPrefix(s, "-") {
			cmd.Subcommand = s
		}
	}
	return cmd
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// BashPatternAllowed checks a parsed command against a set of bash
// allowlist patterns of the form "git commit *", "git *", "ls", or "*".
// Neither Resolve nor the bash tool calls it: a bash call is governed only
// by the tool-level policy that Resolve returns for "bash".
func BashPatternAllowed(patterns []string, cmd BashCommand) bool {
	for _, pattern := range patterns {
		if matchBashPattern(pattern, cmd) {
			return true
		}
	}
	return false
}

func matchBashPattern(pattern string, cmd BashCommand) bool {
	parts := strings.Split(pattern, " ")
	if len(parts) == 0 {
		return false
	}
	if parts[0] == "*" && len(parts) == 1 {
		return true
	}
	if parts[0] != "*" && parts[0] != cmd.Name {
		return false
	}
	if len(parts) == 1 {
		return len(cmd.Args) == 0
	}
	if parts[len(parts)-1] == "*" {
		for i := 1; i < len(parts)-1; i++ {
			argIndex := i - 1
			if argIndex >= len(cmd.Args) {
				return false
			}
			if parts[i] != "*" && parts[i] != cmd.Args[argIndex] {
				return false
			}
		}
		return true
	}
	if len(parts)-1 != len(cmd.Args) {
		return false
	}
	for i := 1; i < len(parts); i++ {
		if parts[i] != cmd.Args[i-1] {
			return false
		}
	}
	return true
}
