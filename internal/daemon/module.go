// Package daemon runs sync passes on a schedule and reports their health over
// a unix socket.
package daemon

import (
	"context"

	"github.com/matheus3301/fwdtodo/internal/bus"
	"github.com/matheus3301/fwdtodo/internal/profile"
	"github.com/matheus3301/fwdtodo/internal/runner"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved daemon configuration passed to the fx module.
type Params struct {
	Runner     runner.Params
	SocketPath string // optional override for testing; empty = profile socket
}

// Module returns the fx module for the daemon: every pass component plus the
// scheduler and the health server.
func Module(p Params) fx.Option {
	return fx.Options(
		runner.Module(p.Runner),
		fx.Module("daemon",
			fx.Supply(p),
			fx.Provide(
				NewScheduler,
				provideServer,
			),
			fx.Invoke(registerLifecycle),
		),
	)
}

func provideServer(p Params, paths profile.Paths, b *bus.Bus, logger *zap.Logger) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = paths.SocketPath()
	}
	return NewServer(socketPath, b, logger.Named("health"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, sched *Scheduler, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return sched.Start()
		},
		OnStop: func(ctx context.Context) error {
			if err := sched.Stop(); err != nil {
				logger.Warn("error stopping scheduler", zap.Error(err))
			}
			srv.Stop(ctx)
			logger.Info("daemon stopped")
			return nil
		},
	})
}
