package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/config"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent operations for a project's session",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringP("project", "p", "", "project root (default: current directory)")
	historyCmd.Flags().IntP("limit", "l", 20, "number of records to show")
	historyCmd.Flags().IntP("expert", "e", -1, "only show operations for this expert")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	dbPath := filepath.Join(sessionCfg.DataRoot, "history.db")
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no session history for %s", sessionCfg.ProjectRoot)
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	expertID, _ := cmd.Flags().GetInt("expert")

	var records []history.Record
	if expertID >= 0 {
		records, err = store.ForExpert(expertID, limit)
	} else {
		records, err = store.Recent(limit)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tEXPERT\tOPERATION\tBRANCH\tOUTCOME\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			r.Finished.Local().Format(time.DateTime),
			r.ExpertID, r.Operation, r.Branch, r.Outcome, r.Detail)
	}
	return w.Flush()
}
