package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inscribe-ai/docwatch/internal/observability"
	"github.com/inscribe-ai/docwatch/internal/server"
	"github.com/inscribe-ai/docwatch/internal/server/handlers"
	"github.com/inscribe-ai/docwatch/pkg/manifest"
	"github.com/inscribe-ai/docwatch/pkg/notify"
	"github.com/inscribe-ai/docwatch/pkg/poller"
	"github.com/inscribe-ai/docwatch/pkg/remote"
	"github.com/inscribe-ai/docwatch/pkg/tracker"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a tracking session from a manifest",
	Long: `Run a tracking session as defined in a YAML or JSON watch manifest.

The manifest specifies the analysis service connection, poll tuning, and
optionally glob patterns for documents to submit at startup. The session
polls every tracked job until it settles, then idles until new work
arrives.

Example:
  docwatch watch --job watch.yaml
  docwatch watch --job watch.yaml --serve
  docwatch watch --job watch.yaml --once`,
	RunE: runWatch,
}

var (
	watchJobPath string
	watchServe   bool
	watchOnce    bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchJobPath, "job", "j", "", "Path to watch manifest (required)")
	watchCmd.Flags().BoolVar(&watchServe, "serve", false, "Also run the observation HTTP server")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Exit when every tracked job settles")

	_ = watchCmd.MarkFlagRequired("job")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(watchJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", watchJobPath),
			zap.Error(err))
		return err
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", watchJobPath),
		zap.String("endpoint", m.Connection.Endpoint),
		zap.Strings("includes", m.Submit.Includes))

	t, err := newTrackerFromManifest(m)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := t.Start(runCtx); err != nil {
		return err
	}
	defer t.Stop()

	// Print notifications as they arrive.
	events, cancelEvents := t.Notifier().Subscribe(32)
	defer cancelEvents()
	go func() {
		for ev := range events {
			prefix := "ok"
			if ev.Kind == notify.KindError {
				prefix = "error"
			}
			fmt.Fprintf(os.Stderr, "[%s] %s\n", prefix, ev.Message)
		}
	}()

	if watchServe && loadedConfig != nil {
		handlers.InitHealthManager(versionInfo.Version)
		srv := server.New(loadedConfig.Server.Host, loadedConfig.Server.Port, handlers.Deps{
			Registry: t.Registry(),
			Quota:    t.Quota(),
			Events:   notify.NewEventLog(t.Notifier(), 64),
		})
		go func() {
			if err := srv.Start(runCtx,
				loadedConfig.Server.ReadTimeout,
				loadedConfig.Server.WriteTimeout,
				loadedConfig.Server.IdleTimeout,
				loadedConfig.Server.ShutdownTimeout); err != nil {
				observability.CLILogger.Error("Observation server failed", zap.Error(err))
			}
		}()
	}

	if err := submitIncludes(runCtx, t, m.Submit.Includes); err != nil {
		return err
	}

	if watchOnce {
		return waitUntilSettled(runCtx, t, m.PollInterval())
	}

	<-runCtx.Done()
	return nil
}

// newTrackerFromManifest builds the client and engine for a manifest.
func newTrackerFromManifest(m *manifest.Manifest) (*tracker.Tracker, error) {
	client, err := remote.NewClient(remote.Config{
		BaseURL: m.Connection.Endpoint,
		UserID:  m.Connection.UserID,
		Timeout: m.RequestTimeout(),
		Logger:  observability.CLILogger.Named("remote"),
	})
	if err != nil {
		return nil, err
	}

	stateDir := m.StateDir
	if stateDir == "" && loadedConfig != nil {
		stateDir = loadedConfig.StateDir
	}

	cfg := tracker.Config{
		Poll: poller.Config{
			Interval:    m.PollInterval(),
			MaxAttempts: m.Poll.MaxAttempts,
			RateLimit:   m.Poll.RateLimit,
		},
		SettleDelay: m.SettleDelay(),
		StoreRoot:   stateDir,
	}
	return tracker.New(cfg, client, observability.CLILogger.Named("tracker")), nil
}

// submitIncludes expands the manifest's glob patterns and submits each
// match. Individual failures are reported and skipped.
func submitIncludes(ctx context.Context, t *tracker.Tracker, includes []string) error {
	if len(includes) == 0 {
		return nil
	}

	paths, err := expandGlobs(includes)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		observability.CLILogger.Warn("No documents matched manifest includes",
			zap.Strings("includes", includes))
		return nil
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := t.Submit(ctx, path); err != nil {
			observability.CLILogger.Error("Submission failed",
				zap.String("path", path),
				zap.Error(err))
		}
	}
	return nil
}

// waitUntilSettled blocks until no tracked job is poll-eligible.
func waitUntilSettled(ctx context.Context, t *tracker.Tracker, interval time.Duration) error {
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			settled := true
			for _, rec := range t.Registry().All() {
				if rec.PollEnabled {
					settled = false
					break
				}
			}
			if settled {
				return nil
			}
		}
	}
}
