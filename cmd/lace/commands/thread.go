package commands

import (
	"fmt"

	"github.com/laceai/lace-core/internal/thread"
	"github.com/spf13/cobra"
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Inspect a thread's event log",
}

var threadShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Print a thread's events and replay-derived state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID := args[0]

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		mgr := thread.NewManager(s)
		view, err := mgr.Replay(cmd.Context(), threadID)
		if err != nil {
			return fmt.Errorf("replaying thread %s: %w", threadID, err)
		}

		fmt.Printf("thread %s (session=%s, project=%s)\n", view.Thread.ID, strPtr(view.Thread.SessionID), strPtr(view.Thread.ProjectID))
		fmt.Printf("%d events\n\n", len(view.Events))
		for _, e := range view.Events {
			fmt.Printf("[%d] %s %s  %s\n", e.Timestamp, e.ID, e.Type, e.Data)
		}

		if open := view.OpenCallsWithoutResult(); len(open) > 0 {
			fmt.Printf("\n%d open tool call(s) without a result:\n", len(open))
			for _, c := range open {
				fmt.Printf("  %s (%s)\n", c.CallID, c.ToolName)
			}
		}

		if len(view.AwaitingApproval) > 0 {
			fmt.Printf("\n%d call(s) awaiting approval:\n", len(view.AwaitingApproval))
			for callID := range view.AwaitingApproval {
				fmt.Printf("  %s\n", callID)
			}
		}

		fmt.Printf("\ntokens: input=%d output=%d reasoning=%d cache_read=%d cache_write=%d\n",
			view.TotalTokens.Input, view.TotalTokens.Output, view.TotalTokens.Reasoning,
			view.TotalTokens.Cache.Read, view.TotalTokens.Cache.Write)

		return nil
	},
}

func strPtr(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

func init() {
	threadCmd.AddCommand(threadShowCmd)
}
