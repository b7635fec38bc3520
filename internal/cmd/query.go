package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inscribe-ai/docwatch/pkg/remote"
)

var queryCmd = &cobra.Command{
	Use:     "query <job_id> <question>",
	Aliases: []string{"ask"},
	Short:   "Ask a question against an analyzed document",
	Long: `Ask a question against a completed document's analyzed content.

The job must have finished analysis with Q&A available; querying earlier
returns an error from the service.

Example:
  docwatch query doc-42 "What is the termination clause?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runQuery,
}

var queryShowSources bool

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&queryShowSources, "sources", false, "Show source excerpts the answer drew from")
}

func runQuery(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	question := strings.TrimSpace(strings.Join(args[1:], " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	res, err := client.Query(ctx, jobID, question)
	if err != nil {
		return err
	}
	if res.Error != "" {
		return &remote.APIError{Op: "query", JobID: jobID, Message: res.Error, Err: remote.ErrRejected}
	}

	fmt.Println(res.Answer)

	if queryShowSources && len(res.SourceExcerpts) > 0 {
		fmt.Println("\nSources:")
		for _, excerpt := range res.SourceExcerpts {
			fmt.Printf("  - %s\n", excerpt)
		}
	}
	return nil
}
