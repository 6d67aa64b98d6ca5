package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/tmux"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List tower tmux sockets on this machine",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	sockets, err := tmux.ListTowerSockets()
	if err != nil {
		return fmt.Errorf("listing tower sockets: %w", err)
	}
	if len(sockets) == 0 {
		fmt.Println("no tower sessions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOCKET\tSESSION")
	for _, socket := range sockets {
		hash := tmux.ExtractSessionHash(socket)
		if hash == "" {
			hash = "-"
		}
		fmt.Fprintf(w, "%s\t%s\n", socket, hash)
	}
	return w.Flush()
}
