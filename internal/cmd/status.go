package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Fetch live status for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	jobID := args[0]

	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	res, err := client.StatusOf(ctx, jobID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("Job:       %s\n", jobID)
	fmt.Printf("Status:    %s\n", res.Status)
	fmt.Printf("Q&A ready: %t\n", res.QnAReady)
	if res.SummaryShort != "" {
		fmt.Printf("Summary:   %s\n", res.SummaryShort)
	}
	for i, finding := range res.KeyFindings {
		if i == 0 {
			fmt.Println("Findings:")
		}
		fmt.Printf("  - %s\n", finding)
	}
	if res.ErrorMessage != "" {
		fmt.Printf("Error:     %s\n", res.ErrorMessage)
	}
	return nil
}
