package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/inscribe-ai/docwatch/pkg/registry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked jobs",
	Long: `List jobs recorded in the state directory, newest first.

This reads the persisted records left by previous submit/watch runs; it
does not contact the analysis service. Use 'docwatch status' for a live
check of a single job.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("json", false, "Output as JSON")
}

func runList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store := registry.NewStore(loadedConfig.StateDir)
	records, err := store.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No tracked jobs")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintln(w, "JOB ID\tNAME\tSTATUS\tQNA\tATTEMPTS\tCREATED")
	for _, rec := range records {
		qna := ""
		if rec.QnAReady {
			qna = "ready"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.ID,
			rec.DisplayName,
			rec.Status,
			qna,
			rec.PollAttempts,
			rec.CreatedAt.Local().Format(time.RFC3339))
	}
	return nil
}
