// Package cli implements the rinton command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bryan-buckman/rinton/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// env is shared by every subcommand once the root pre-run has loaded it.
type env struct {
	cfg *config.Config
}

// app opens the backend; callers must Close it.
func (e *env) app() (*App, error) {
	return NewApp(e.cfg)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "rinton",
		Short:         "Chat-channel record store, feed notifier and todo list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			e.cfg = cfg
			setupLogging(cmd.ErrOrStderr(), cfg)
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(e),
		newPollCmd(e),
		newTodoCmd(e),
		newFeedsCmd(e),
		newAskCmd(e),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

func setupLogging(w io.Writer, cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat, "backend", cfg.Backend)
}
