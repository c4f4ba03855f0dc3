// Command ole analyses the colour precision of LED displays from
// spectrometer measurement files.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

// Version is set at build time
var Version = "dev"

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	if err := fang.Execute(
		ctx,
		newRootCmd(),
		fang.WithVersion(Version),
		fang.WithColorSchemeFunc(colorScheme),
	); err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		logger.ErrorContext(ctx, "ole failed", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
}
