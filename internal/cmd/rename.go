package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inscribe-ai/docwatch/pkg/registry"
)

var renameCmd = &cobra.Command{
	Use:   "rename <job_id> <new_name>",
	Short: "Rename a tracked document",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	newName := strings.TrimSpace(args[1])
	if newName == "" {
		return fmt.Errorf("new name is empty")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	if err := client.Rename(ctx, jobID, newName); err != nil {
		return err
	}

	// Keep the persisted record in step with the server.
	store := registry.NewStore(loadedConfig.StateDir)
	if rec, err := store.Get(jobID); err == nil {
		rec.DisplayName = newName
		if err := store.Write(rec); err != nil {
			return fmt.Errorf("renamed on server, but failed to update local record: %w", err)
		}
	}

	fmt.Printf("Renamed %s to %q\n", jobID, newName)
	return nil
}
