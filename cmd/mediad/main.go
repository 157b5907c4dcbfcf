// Package main is the entry point for the mediad media session aggregator.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/bus"
	"github.com/genricoloni/mediad/internal/config"
	"github.com/genricoloni/mediad/internal/domain"
	"github.com/genricoloni/mediad/internal/identity"
	"github.com/genricoloni/mediad/internal/mixer"
	"github.com/genricoloni/mediad/internal/session"
	"github.com/genricoloni/mediad/internal/stream"
	"github.com/genricoloni/mediad/internal/transport/socketio"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		fx.Provide(
			newLogger,
			config.NewAppConfig,
			newRunner,
			newBusBackend,
			newCaller,
			newEventSource,
			newMixer,
			newResolver,
			socketio.NewServer,
			newBridge,
			session.NewAggregator,
		),

		fx.Invoke(registerHooks),
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a new zap logger instance
func newLogger() (*zap.Logger, error) {
	if os.Getenv("MEDIAD_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newRunner(logger *zap.Logger, cfg *config.AppConfig) bus.Runner {
	return bus.NewExecRunner(logger, cfg.GetCallTimeout())
}

// busBackend bundles the active bus caller with the in-process connection,
// which is nil when running on the gdbus fallback.
type busBackend struct {
	caller bus.Caller
	native *bus.Client
}

func newBusBackend(logger *zap.Logger, cfg *config.AppConfig, runner bus.Runner) *busBackend {
	client, err := bus.NewClient(cfg.GetCallTimeout())
	if err != nil {
		logger.Warn("Session bus connection failed, falling back to gdbus", zap.Error(err))
		return &busBackend{caller: bus.NewCLIClient(runner)}
	}
	return &busBackend{caller: client, native: client}
}

func newCaller(b *busBackend) bus.Caller {
	return b.caller
}

func newEventSource(logger *zap.Logger, cfg *config.AppConfig, b *busBackend) domain.EventSource {
	if cfg.GetEventSource() == "monitor" || b.native == nil {
		return stream.NewMonitorSource(logger)
	}
	return bus.NewSignalSource(logger, b.native)
}

func newMixer(logger *zap.Logger, cfg *config.AppConfig, runner bus.Runner) domain.Mixer {
	m, err := mixer.NewCLIMixer(logger, runner, cfg.GetMixerTool())
	if err != nil {
		// Volume control degrades to failed calls; everything else keeps
		// working
		logger.Warn("No mixer utility available", zap.Error(err))
		return mixer.Unavailable{}
	}
	return m
}

func newResolver(logger *zap.Logger, caller bus.Caller) session.NameResolver {
	return identity.NewResolver(logger, caller, identity.PsInspector{})
}

func newBridge(server *socketio.Server) domain.Bridge {
	return server
}

// registerHooks ties the bridge, event source and aggregator loop to the
// application lifecycle.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	server *socketio.Server,
	source domain.EventSource,
	aggregator *session.Aggregator,
) {
	var runCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())
			runCancel = cancel

			if err := server.Start(); err != nil {
				cancel()
				return err
			}
			if err := source.Start(runCtx); err != nil {
				// The polling loop still converges without signals,
				// just more slowly
				logger.Warn("Event source failed to start, relying on polling", zap.Error(err))
			}
			go aggregator.Run(runCtx)

			logger.Info("mediad started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			runCancel()
			if err := source.Stop(); err != nil {
				logger.Warn("Event source stop failed", zap.Error(err))
			}
			return server.Stop(ctx)
		},
	})
}
