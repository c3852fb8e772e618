package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maildeck/maildeck/internal/config"
	"github.com/maildeck/maildeck/internal/store"
)

// Version is the release version, overridden at build time with -ldflags.
var Version = "dev"

var (
	cfgFile     string
	maildirFlag string
	portFlag    int
	verbose     bool
	cfg         *config.Config
	logger      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "maildeck",
	Short: "Terminal maildir browser with a live web mirror",
	Long: `maildeck browses a local maildir store in the terminal and mirrors the
current selection to any number of web viewers in real time.

The terminal is the only place navigation happens; browsers pointed at the
web port follow along as folders and messages are selected. Nothing ever
writes to the mail store.

Configuration resolves in order: --config file, the per-user config
(maildeck/config.toml under the OS config dir), ./maildeck.toml, then
built-in defaults. The --maildir and --port flags override whatever the
files say.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if maildirFlag != "" {
			cfg.Maildir = maildirFlag
		}
		if portFlag != 0 {
			cfg.Port = portFlag
		}
		return nil
	},
	RunE: runBrowse,
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&maildirFlag, "maildir", "m", "", "mail store root (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&portFlag, "port", "p", 0, "web mirror port (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openIndex opens the store with the resolved configuration. A missing root
// is fatal; the caller propagates the error and the process exits non-zero.
func openIndex() (*store.Index, error) {
	ix, err := store.Open(cfg.Maildir, store.Options{
		ScanBudget: cfg.ScanBudget(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open mail store: %w", err)
	}
	return ix, nil
}
