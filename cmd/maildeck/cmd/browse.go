package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/maildeck/maildeck/internal/api"
	"github.com/maildeck/maildeck/internal/bus"
	"github.com/maildeck/maildeck/internal/config"
	"github.com/maildeck/maildeck/internal/nav"
	"github.com/maildeck/maildeck/internal/store"
	"github.com/maildeck/maildeck/internal/tui"
)

// eventQueueCap bounds each subscriber's outbound queue. A mirror that lags
// this many events behind a human pressing keys is not coming back.
const eventQueueCap = 64

const shutdownTimeout = 5 * time.Second

// programSender forwards watcher notifications into the running bubbletea
// program. The watcher starts before the program exists, so the handle is
// set once the program is built.
type programSender struct {
	p atomic.Pointer[tea.Program]
}

func (s *programSender) send(folder string) {
	if p := s.p.Load(); p != nil {
		p.Send(tui.WatchMsg{Folder: folder})
	}
}

// runBrowse is the default command: the terminal browser plus the web
// mirror, sharing one machine through the change bus.
func runBrowse(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("stdout is not a terminal; use 'maildeck serve' for headless mirroring")
	}

	// The terminal belongs to the TUI; logs go to a file instead.
	fileLogger, closeLog, err := fileLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	logger = fileLogger

	ix, err := openIndex()
	if err != nil {
		return err
	}

	b := bus.New[nav.Event](eventQueueCap, logger)
	machine := nav.NewMachine(ix, b, logger)
	machine.Start()

	server := api.NewServer(cfg, b, logger)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sender := &programSender{}
	var watcher *store.Watcher
	if cfg.Watch {
		watcher, err = ix.NewWatcher(sender.send)
		if err != nil {
			logger.Warn("live refresh disabled", "error", err)
			watcher = nil
		} else {
			defer watcher.Close()
		}
	}

	var watchHandle tui.Watcher
	if watcher != nil {
		watchHandle = watcher
	}
	model := tui.New(machine, ix, watchHandle, tui.Options{Version: Version})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	sender.p.Store(p)

	_, runErr := p.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("view server: %w", err)
	default:
	}

	if errors.Is(runErr, tea.ErrProgramKilled) {
		// Killed by the signal context; report the cancellation so the
		// process exits with the interrupt code.
		if ctxErr := cmd.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return nil
	}
	if runErr != nil {
		return fmt.Errorf("run tui: %w", runErr)
	}
	return nil
}

// fileLogger opens the log file under the user cache dir, creating parents.
func fileLogger() (*slog.Logger, func(), error) {
	path := config.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return l, func() { _ = f.Close() }, nil
}
