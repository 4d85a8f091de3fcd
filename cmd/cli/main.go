// Command cli runs sync passes and inspects sync bookkeeping from a shell or
// a job scheduler. It exits non-zero when a pass fails.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirasaad/splitsync/infra/initializer"
	"github.com/amirasaad/splitsync/pkg/app"
	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/fatih/color"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plain = !term.IsTerminal(int(os.Stdout.Fd()))

	root := newRootCmd(os.Stdout, buildApp)
	if err := root.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: %v\n", err) //nolint:errcheck
		stop()
		os.Exit(1) //nolint:gocritic
	}
}

func buildApp(envFile string) (*app.App, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load application configuration: %w", err)
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	return app.New(deps, cfg)
}
