package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/config"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/session"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/worktree"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop stale worktree metadata for a project",
	Long: `Prune removes git's records of worktrees whose directories no longer
exist, typically left behind by a crash or a manual deletion. Run it when a
launch reports stale worktree state, then retry the launch. Worktrees that
are still on disk are never touched.`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().StringP("project", "p", "", "project root (default: current directory)")

	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if project, _ := cmd.Flags().GetString("project"); project != "" {
		cfg.Project.Root = project
	}

	sessionCfg, err := config.NewSessionConfig(cfg)
	if err != nil {
		return err
	}

	layout := session.NewLayout(sessionCfg.DataRoot)
	mgr, err := worktree.New(sessionCfg.ProjectRoot, layout.Worktrees)
	if err != nil {
		return err
	}

	if err := mgr.Prune(); err != nil {
		return fmt.Errorf("pruning worktrees: %w", err)
	}

	fmt.Println("stale worktree metadata pruned")
	return nil
}
