// Command shelf manages a personal book library from the terminal. Without a
// saved login it keeps the library on this device; after `shelf login` it
// mirrors the account's remote library.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"bookshelf/internal/config"
	"bookshelf/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Logs go to a file so they never draw over the terminal UI.
	logger, err := logging.NewFile(cfg.LogLevel, filepath.Join(cfg.DataDir, "shelf.log"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, logger: logger, errOut: os.Stderr}
	err = newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
}
