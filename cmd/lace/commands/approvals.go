package commands

import (
	"fmt"

	"github.com/laceai/lace-core/internal/approval"
	"github.com/laceai/lace-core/internal/thread"
	"github.com/laceai/lace-core/pkg/types"
	"github.com/spf13/cobra"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List or resolve pending tool approvals",
}

var approvalsSessionID string

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending tool approvals for a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if approvalsSessionID == "" {
			return fmt.Errorf("--session is required")
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		mgr := thread.NewManager(s)
		pending, err := mgr.ListPendingApprovalsForSession(cmd.Context(), approvalsSessionID)
		if err != nil {
			return fmt.Errorf("listing pending approvals for session %s: %w", approvalsSessionID, err)
		}

		if len(pending) == 0 {
			fmt.Println("no pending approvals")
			return nil
		}
		for _, p := range pending {
			fmt.Printf("thread=%s call=%s tool=%s requested=%d args=%v\n",
				p.ThreadID, p.CallID, p.ToolName, p.RequestTimestamp, p.Arguments)
		}
		return nil
	},
}

var (
	submitThreadID string
	submitCallID   string
)

var approvalsSubmitCmd = &cobra.Command{
	Use:   "submit <decision>",
	Short: "Submit a decision for a pending approval",
	Long: `submit records an approval decision against a thread's event log.
<decision> must be one of: allow_once, allow_session, allow_project,
allow_always, deny, disable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if submitThreadID == "" || submitCallID == "" {
			return fmt.Errorf("--thread and --call-id are required")
		}

		decision := types.ApprovalDecision(args[0])
		switch decision {
		case types.DecisionAllowOnce, types.DecisionAllowSession, types.DecisionAllowProject,
			types.DecisionAllowAlways, types.DecisionDeny, types.DecisionDisable:
		default:
			return fmt.Errorf("unknown decision: %s", args[0])
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		mgr := thread.NewManager(s)
		coordinator := approval.NewCoordinator(s, mgr)

		if err := coordinator.SubmitDecision(cmd.Context(), submitThreadID, submitCallID, decision); err != nil {
			return fmt.Errorf("submitting decision: %w", err)
		}

		fmt.Printf("recorded %s for thread=%s call=%s\n", decision, submitThreadID, submitCallID)
		return nil
	},
}

func init() {
	approvalsListCmd.Flags().StringVar(&approvalsSessionID, "session", "", "Session ID to list pending approvals for")

	approvalsSubmitCmd.Flags().StringVar(&submitThreadID, "thread", "", "Thread ID the approval request belongs to")
	approvalsSubmitCmd.Flags().StringVar(&submitCallID, "call-id", "", "Tool call ID the decision resolves")

	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsSubmitCmd)
}
