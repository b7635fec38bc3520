package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inscribe-ai/docwatch/pkg/registry"
)

var retryCmd = &cobra.Command{
	Use:   "retry <job_id>",
	Short: "Re-enable polling for a settled job",
	Long: `Reset a job's poll state so the next watch run polls it again.

Attempts are cleared and the job returns to the analyzing state. Use this
after a polling timeout, or when the server kept processing past the
client's patience.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	store := registry.NewStore(loadedConfig.StateDir)
	rec, err := store.Get(jobID)
	if err != nil {
		return err
	}

	rec.Status = registry.StatusAnalyzing
	rec.PollEnabled = true
	rec.PollAttempts = 0
	rec.ErrorMessage = ""
	rec.QnAReady = false

	if err := store.Write(rec); err != nil {
		return err
	}

	fmt.Printf("Job %s reset; run 'docwatch watch' to resume polling\n", jobID)
	return nil
}
