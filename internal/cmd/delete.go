package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inscribe-ai/docwatch/pkg/registry"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <job_id>",
	Aliases: []string{"rm"},
	Short:   "Delete a tracked document and its analysis",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var deleteForce bool

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	if !deleteForce {
		fmt.Printf("Delete job %s and its analysis? [y/N] ", jobID)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Println("Aborted")
			return nil
		}
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	if err := client.Delete(ctx, jobID); err != nil {
		return err
	}

	store := registry.NewStore(loadedConfig.StateDir)
	if err := store.Remove(jobID); err != nil {
		return fmt.Errorf("deleted on server, but failed to remove local record: %w", err)
	}

	fmt.Printf("Deleted %s\n", jobID)
	return nil
}
