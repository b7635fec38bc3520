// Package cmd implements the docwatch command tree.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/inscribe-ai/docwatch/internal/config"
	"github.com/inscribe-ai/docwatch/internal/observability"
	"github.com/inscribe-ai/docwatch/pkg/remote"
)

// versionInfo carries build metadata injected at link time.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	flagLogLevel  string
	flagLogFormat string

	// loadedConfig is resolved once in PersistentPreRunE and shared by
	// all commands.
	loadedConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docwatch",
	Short: "Track server-side document analysis jobs",
	Long: `docwatch submits documents to an analysis service and reconciles their
job status by polling, so the local view converges on the server's truth.

It tracks each submitted document through upload, parsing, and analysis,
surfaces summaries and key findings when analysis completes, and gates
Q&A queries on the server's readiness flag.

Configuration comes from DOCWATCH_* environment variables, an optional
docwatch.yaml, and per-run watch manifests.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A local .env is optional; absence is not an error.
		_ = godotenv.Load()

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}
		loadedConfig = cfg

		level := cfg.Logging.Level
		if flagLogLevel != "" {
			level = flagLogLevel
		}
		format := cfg.Logging.Format
		if flagLogFormat != "" {
			format = flagLogFormat
		}
		observability.InitCLILogger(level, format == "json")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (console or json)")
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// newClient builds an API client from the resolved config.
func newClient() (*remote.Client, error) {
	cfg := loadedConfig
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if cfg.Connection.UserID == "" {
		return nil, fmt.Errorf("no user id configured (set DOCWATCH_USER_ID or connection.user_id)")
	}
	return remote.NewClient(remote.Config{
		BaseURL: cfg.Connection.Endpoint,
		UserID:  cfg.Connection.UserID,
		Timeout: cfg.Connection.Timeout,
		Logger:  observability.CLILogger.Named("remote"),
	})
}

// requestContext bounds one-shot commands that make a single API call.
func requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 30 * time.Second
	if loadedConfig != nil && loadedConfig.Connection.Timeout > 0 {
		timeout = loadedConfig.Connection.Timeout
	}
	return context.WithTimeout(ctx, timeout)
}
