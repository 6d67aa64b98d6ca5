package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/config"
	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/orchestrator"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/tui"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tower dashboard for a project",
	Long: `Start bootstraps the session for the project (directories, lock,
tmux socket, operation history) and opens the dashboard. Quitting the
dashboard detaches: agents keep running and the session can be picked
up again by the next start.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringP("project", "p", "", "project root (default: current directory)")
	startCmd.Flags().IntP("experts", "n", 0, "number of experts (overrides config)")
	_ = viper.BindPFlag("project.root", startCmd.Flags().Lookup("project"))

	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("experts"); n > 0 {
		cfg.Experts.Count = n
	}

	tower, err := orchestrator.Bootstrap(cfg)
	if err != nil {
		switch {
		case towererrors.Is(err, towererrors.ErrSessionLocked):
			return fmt.Errorf("another tower is already supervising this project: %w", err)
		case towererrors.Is(err, towererrors.ErrNotGitRepository):
			return fmt.Errorf("tower requires a git repository: %w", err)
		case towererrors.IsFatal(err):
			return fmt.Errorf("tower cannot start: %w", err)
		}
		return err
	}
	defer tower.Close()

	program := tea.NewProgram(tui.New(tower), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}
