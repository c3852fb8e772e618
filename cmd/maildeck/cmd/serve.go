package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/maildeck/maildeck/internal/api"
	"github.com/maildeck/maildeck/internal/bus"
	"github.com/maildeck/maildeck/internal/nav"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web mirror without a terminal UI",
	Long: `Serve the web mirror headless: no terminal interface, just the snapshot
and event-stream endpoints.

Without a terminal driving navigation, the mirror opens the first folder
(INBOX when present) and follows external changes to it, so browsers see
new mail arrive. Use Ctrl+C to stop.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ix, err := openIndex()
	if err != nil {
		return err
	}

	b := bus.New[nav.Event](eventQueueCap, logger)
	machine := nav.NewMachine(ix, b, logger)
	machine.Start()

	// Open the first folder so the mirror has a listing to show. The row
	// order puts INBOX first when it exists.
	if len(machine.FolderRows()) > 0 {
		machine.Apply(nav.CmdActivate)
	}

	// All machine calls stay on this goroutine; the watcher only posts
	// folder names into the channel.
	refreshCh := make(chan string, 16)
	if cfg.Watch {
		watcher, err := ix.NewWatcher(func(folder string) {
			select {
			case refreshCh <- folder:
			default:
			}
		})
		if err != nil {
			logger.Warn("live refresh disabled", "error", err)
		} else {
			defer watcher.Close()
			watcher.Watch(machine.Selection().FolderPath)
		}
	}

	server := api.NewServer(cfg, b, logger)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fmt.Printf("maildeck mirror started\n")
	fmt.Printf("  store: %s\n", cfg.Maildir)
	fmt.Printf("  web:   http://127.0.0.1:%d\n", cfg.Port)

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("server shutdown", "error", err)
			}
			return ctx.Err()

		case err := <-serverErr:
			return fmt.Errorf("view server: %w", err)

		case folder := <-refreshCh:
			machine.RefreshFolder(folder)
		}
	}
}
