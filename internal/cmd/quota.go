package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show remaining upload quota",
	RunE:  runQuota,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.Flags().Bool("json", false, "Output as JSON")
}

func runQuota(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	res, err := client.Quota(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("Remaining uploads: %d\n", res.Remaining)
	return nil
}
