package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/afridiag/fieldsync/internal/core/domain"
)

var syncDomain string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ask the running agent to drain the sync queue now",
	Run:   runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncDomain, "domain", "", "drain a single domain instead of all")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) {
	path := "/sync"
	if syncDomain != "" {
		path += "?domain=" + syncDomain
	}

	url, err := agentURL(path)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		slog.Error("Agent is not reachable", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &detail)
		if detail.Detail == "" {
			detail.Detail = string(body)
		}
		slog.Error("Sync failed", "status", resp.StatusCode, "detail", detail.Detail)
		os.Exit(1)
	}

	var report domain.SyncReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode report", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DOMAIN\tSUCCEEDED\tFAILED")
	for _, dr := range report.Domains {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", dr.Domain, dr.Succeeded, dr.Failed)
		for _, e := range dr.Errors {
			_, _ = fmt.Fprintf(w, "  %s\t%s\t\n", e.LocalID, e.Message)
		}
	}
	_, _ = fmt.Fprintf(w, "total\t%d\t%d\n", report.TotalSucceeded, report.TotalFailed)
	_ = w.Flush()
}
