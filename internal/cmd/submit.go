package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/inscribe-ai/docwatch/internal/observability"
	"github.com/inscribe-ai/docwatch/pkg/manifest"
	"github.com/inscribe-ai/docwatch/pkg/poller"
	"github.com/inscribe-ai/docwatch/pkg/tracker"
)

var submitCmd = &cobra.Command{
	Use:   "submit [files...]",
	Short: "Submit PDF documents for analysis",
	Long: `Submit one or more PDF documents to the analysis service.

Files can be given as arguments or matched with --glob patterns
(doublestar syntax, e.g. "reports/**/*.pdf"). Submitted jobs are recorded
in the state directory; run 'docwatch watch' to poll them to completion,
or pass --wait to poll inline.

Example:
  docwatch submit contract.pdf
  docwatch submit --glob "reports/**/*.pdf"
  docwatch submit contract.pdf --wait`,
	RunE: runSubmit,
}

var (
	submitGlobs []string
	submitWait  bool
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringArrayVar(&submitGlobs, "glob", nil, "Glob pattern for documents to submit (repeatable)")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "Poll submitted jobs until they settle")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	patterns := append(append([]string{}, args...), submitGlobs...)
	if len(patterns) == 0 {
		return fmt.Errorf("nothing to submit: give file arguments or --glob patterns")
	}

	paths, err := expandGlobs(patterns)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files matched")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	t := tracker.New(tracker.Config{
		Poll:      poller.DefaultConfig(),
		StoreRoot: loadedConfig.StateDir,
	}, client, observability.CLILogger.Named("tracker"))

	if err := t.Start(ctx); err != nil {
		return err
	}
	defer t.Stop()

	var failed int
	for _, path := range paths {
		rec, err := t.Submit(ctx, path)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Failed to submit %s: %v\n", path, err)
			continue
		}
		fmt.Printf("Submitted %s as job %s\n", rec.DisplayName, rec.ID)
	}

	if submitWait {
		if err := waitUntilSettled(ctx, t, manifest.DefaultPollIntervalMS*time.Millisecond); err != nil {
			return err
		}
		for _, rec := range t.Registry().All() {
			fmt.Printf("%s\t%s\t%s\n", rec.ID, rec.DisplayName, rec.Status)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d submissions failed", failed, len(paths))
	}
	return nil
}
