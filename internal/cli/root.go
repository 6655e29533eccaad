// Package cli defines the votectl cobra commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"animevote/internal/app/bootstrap"
	"animevote/internal/platform/config"

	"github.com/spf13/cobra"
)

var version = "dev" // set via ldflags at build time

type rootOptions struct {
	store      string
	sqlitePath string
	verbose    bool
}

// NewRootCommand builds the votectl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "votectl",
		Short: "Operate the animevote voting store",
		Long: `votectl runs maintenance and read-only queries against the store
configured for the animevote api (STORE_DRIVER, SQLITE_PATH, POSTGRES_DSN).`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.store, "store", "", "Override STORE_DRIVER (memory, sqlite, postgres)")
	root.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", "", "Override SQLITE_PATH")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Log runtime events to stderr")

	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newSessionsCommand(opts))
	root.AddCommand(newStatsCommand(opts))
	root.AddCommand(newGradesCommand())
	root.AddCommand(newTokenCommand())
	return root
}

// Execute runs votectl. Called from main.
func Execute() {
	if err := NewRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if store := strings.ToLower(strings.TrimSpace(o.store)); store != "" {
		cfg.StoreDriver = store
	}
	if path := strings.TrimSpace(o.sqlitePath); path != "" {
		cfg.SQLitePath = path
	}
	return cfg, cfg.Validate()
}

func (o *rootOptions) logger() *slog.Logger {
	if o.verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o *rootOptions) openRuntime(ctx context.Context) (*bootstrap.Runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.OpenRuntime(ctx, cfg, o.logger())
}

func writeJSON(out io.Writer, payload any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
