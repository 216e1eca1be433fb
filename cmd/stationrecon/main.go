package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"github.com/stco/stationrecon/internal/app"
	"github.com/stco/stationrecon/internal/support/logger"

	_ "github.com/stco/stationrecon/internal/store/mysql"
	_ "github.com/stco/stationrecon/internal/store/postgres"
	_ "github.com/stco/stationrecon/internal/store/sqlite"
)

// embeddedConfig embeds the default YAML configuration; environment variables
// override it at startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// resolveMode picks the run mode from the first CLI argument, then the
// STATIONRECON_MODE environment variable, defaulting to view.
func resolveMode() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if mode := os.Getenv("STATIONRECON_MODE"); mode != "" {
		return mode
	}
	return app.ModeView
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Shutting down...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(ctx, envFilePath, embeddedConfig, resolveMode())
	os.Exit(0)
}
