// Package main provides the entry point for the modelscout CLI.
package main

import (
	"context"
	"os"
	"time"

	"github.com/modelscout/modelscout/cmd/modelscout/app"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		app.ExitOnError(err)
	}

	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		// Shut down with a fresh context; the signal context may already
		// be cancelled.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if shutdownErr := application.Shutdown(shutdownCtx); shutdownErr != nil {
			application.Logger().Error().Err(shutdownErr).Msg("shutdown error during error handling")
		}
		app.ExitOnError(err)
	}

	if err := application.Shutdown(ctx); err != nil {
		app.ExitOnError(err)
	}
}
