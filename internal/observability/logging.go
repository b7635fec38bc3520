// Package observability provides the shared CLI logger.
//
// Commands log through the package-level CLILogger, which writes
// human-readable console output to stderr by default and structured JSON
// when requested. Keeping log output on stderr leaves stdout free for
// command results, so pipelines like `docwatch list --json | jq` work.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger for command execution. It defaults
// to a no-op logger until InitCLILogger is called.
var CLILogger = zap.NewNop()

// InitCLILogger configures the CLI logger.
//
// level accepts the usual zap names (debug, info, warn, error); unknown
// values fall back to info. jsonOutput switches from console encoding to
// one JSON object per line.
func InitCLILogger(level string, jsonOutput bool) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if jsonOutput {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	CLILogger = zap.New(core)
}

// Sync flushes buffered log entries. Called before process exit.
func Sync() {
	_ = CLILogger.Sync()
}
