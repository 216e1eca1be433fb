package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/stco/stationrecon/internal/config"
	"github.com/stco/stationrecon/internal/ingest"
	"github.com/stco/stationrecon/internal/server"
	"github.com/stco/stationrecon/internal/support/logger"
)

const (
	ModeSetup = "setup"
	ModeView  = "view"
)

// RunApplication loads configuration, assembles the fx graph, and runs the
// requested mode until completion or shutdown.
func RunApplication(appCtx context.Context, envFilePath string, embedded config.EmbeddedConfig, mode string) {
	cfg, err := config.Load(envFilePath, embedded)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Infof("Log level set to: %s", cfg.System.Logging.Level)

	fxApp := fx.New(
		fx.Supply(
			cfg,
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		logger.Module,
		Module,
		fx.Invoke(fx.Annotate(startRun(mode), fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // runner *Runner
			"",              // cfg *config.Config
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	fxApp.Run()

	if err := fxApp.Err(); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
}

// startRun hooks the selected mode into the fx lifecycle. Setup shuts the
// application down when the run finishes; View serves HTTP until shutdown.
func startRun(mode string) func(fx.Lifecycle, fx.Shutdowner, *Runner, *config.Config, context.Context) {
	return func(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *Runner, cfg *config.Config, appCtx context.Context) {
		var srv *http.Server

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				switch mode {
				case ModeSetup:
					go runSetup(appCtx, runner, shutdowner)
					return nil
				case ModeView:
					data, err := runner.View(appCtx)
					if err != nil {
						if errors.Is(err, ingest.ErrNoData) {
							logger.Errorf("%v", err)
						}
						return err
					}
					s := server.New(data, runner.recorder, cfg.Server.Mode)
					srv = &http.Server{Addr: cfg.Server.Addr, Handler: s.Engine()}
					go func() {
						logger.Infof("listening on %s", cfg.Server.Addr)
						if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							logger.Errorf("http server: %v", err)
							if shutdownErr := shutdowner.Shutdown(); shutdownErr != nil {
								logger.Errorf("Failed to shutdown application: %v", shutdownErr)
							}
						}
					}()
					return nil
				default:
					return errors.New("unknown mode " + mode)
				}
			},
			OnStop: func(ctx context.Context) error {
				if srv != nil {
					stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
					defer cancel()
					if err := srv.Shutdown(stopCtx); err != nil {
						logger.Warnf("http shutdown: %v", err)
					}
				}
				logger.Infof("Application is shutting down.")
				return nil
			},
		})
	}
}

// runSetup executes one reconciliation run and then requests shutdown.
func runSetup(ctx context.Context, runner *Runner, shutdowner fx.Shutdowner) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic recovered in run execution: %v", r)
		}
		if err := shutdowner.Shutdown(); err != nil {
			logger.Errorf("Failed to shutdown application: %v", err)
		}
	}()

	rep, err := runner.Setup(ctx)
	if err != nil {
		logger.Errorf("Setup run failed: %v", err)
		return
	}
	logger.Infof("Setup run %s completed: %d cells, %d anomalous, %d flagged",
		rep.RunID, rep.Stats.Cells, rep.AnomalousCells, rep.FlaggedCells)
}
