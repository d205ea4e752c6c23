package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/afridiag/fieldsync/internal/core/config"
	"github.com/afridiag/fieldsync/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and connectivity of the running agent",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func agentURL(path string) (string, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://localhost:%d%s", cfg.Server.Port, path), nil
}

func runStatus(cmd *cobra.Command, args []string) {
	url, err := agentURL("/status")
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	resp, err := http.Get(url)
	if err != nil {
		slog.Error("Agent is not reachable", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var status domain.QueueStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		slog.Error("Failed to decode status", "error", err)
		os.Exit(1)
	}

	fmt.Printf("online: %v\n", status.Online)
	if status.LastSyncTime != nil {
		fmt.Printf("last sync: %s\n", status.LastSyncTime.Local())
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DOMAIN\tPENDING")
	for _, d := range domain.SyncOrder {
		if n := status.Pending[d]; n > 0 {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", d, n)
		}
	}
	_, _ = fmt.Fprintf(w, "total\t%d\n", status.TotalPending)
	_ = w.Flush()
}
