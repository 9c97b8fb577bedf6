// Package cli implements docctl, the operator tool for the document corpus
// and the conversation log. It shares the server's configuration and works
// against the same storage directly.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docchat/internal/bootstrap"
	"docchat/internal/config"
)

type options struct {
	configFile string
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "docctl",
		Short: "Manage the docchat corpus and conversation log",
		Long: `docctl - inspect and maintain a docchat deployment

Reads the same configuration as the server (.env, CONFIG_FILE and the
environment) and operates on its storage directly.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "TOML config file (overrides CONFIG_FILE)")

	root.AddCommand(
		newIngestCmd(opts),
		newDocsCmd(opts),
		newRemoveDocCmd(opts),
		newSessionsCmd(opts),
		newHistoryCmd(opts),
		newRemoveSessionCmd(opts),
	)
	return root
}

// openApp builds the services without the ingest consumer so a one-shot
// command never takes jobs off the queue.
func openApp(ctx context.Context, opts *options) (*bootstrap.App, error) {
	if opts.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", opts.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return bootstrap.NewWithConfig(ctx, cfg, bootstrap.Options{})
}

func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()
	return fn(ctx, app)
}
