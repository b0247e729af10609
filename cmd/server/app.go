package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/actions"
	"github.com/isdmx/e2bbox/config"
	"github.com/isdmx/e2bbox/e2b"
	"github.com/isdmx/e2bbox/logger"
	"github.com/isdmx/e2bbox/mcpserver"
	"github.com/isdmx/e2bbox/sandbox"
)

// coreOptions wires everything except the MCP transport
func coreOptions(configPath string) fx.Option {
	return fx.Options(
		fx.Provide(
			// Config
			func() (*config.Config, error) {
				if configPath != "" {
					return config.NewFromFile(configPath)
				}
				return config.New()
			},

			// Logger with configuration
			logger.NewFromConfig,

			// Metrics, nil when disabled
			newMetricsRegistry,
			sandbox.NewMetrics,
			actions.NewMetrics,

			// Remote sandbox service
			fx.Annotate(e2b.NewFromConfig, fx.As(new(sandbox.Client))),

			// Session registry and idle eviction
			newRegistry,
			newEvictor,
			asSessions,

			// Actions
			actions.New,
		),

		fx.Invoke(registerSessionLifecycle),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}

// serverOptions adds the MCP server on the configured transport
func serverOptions(configPath string) fx.Option {
	return fx.Options(
		coreOptions(configPath),
		fx.Provide(mcpserver.New),
		fx.Invoke(registerServerLifecycle),
	)
}

func newMetricsRegistry(cfg *config.Config) *prometheus.Registry {
	if !cfg.Server.MetricsEnabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newRegistry(log *zap.Logger, client sandbox.Client, metrics *sandbox.Metrics) *sandbox.Registry {
	return sandbox.NewRegistry(log, client, metrics)
}

func asSessions(r *sandbox.Registry) actions.Sessions {
	return r
}

func newEvictor(cfg *config.Config, log *zap.Logger, registry *sandbox.Registry) (*sandbox.Evictor, error) {
	return sandbox.NewEvictor(log, registry, cfg.GetIdleTimeout(), cfg.Session.EvictionSchedule)
}

// registerSessionLifecycle starts idle eviction and closes every sandbox on stop
func registerSessionLifecycle(lc fx.Lifecycle, registry *sandbox.Registry, evictor *sandbox.Evictor) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			evictor.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			evictor.Stop(ctx)
			registry.Shutdown(ctx)
			return nil
		},
	})
}

// registerServerLifecycle serves MCP in the background. The app shuts down
// when the transport ends, e.g. when stdin is closed.
func registerServerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger, server *mcpserver.MCPServer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			serve := server.ServeStdio
			if cfg.Server.Transport == "http" {
				serve = server.ServeHTTP
			}
			go func() {
				if err := serve(); err != nil {
					log.Error("MCP server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
