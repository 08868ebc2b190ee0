package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/matheus3301/fwdtodo/internal/bus"
	intsync "github.com/matheus3301/fwdtodo/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name whose status follows pass results.
const HealthService = "fwdtodo.sync"

// Server serves the gRPC health service on the profile's unix socket.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger

	passes      <-chan bus.Event
	unsubscribe func()
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewServer creates a gRPC server bound to socketPath. The health of
// HealthService starts as SERVING and is updated by every completed pass
// published on b.
func NewServer(socketPath string, b *bus.Bus, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	passes, unsub := b.Subscribe(bus.KindPassCompleted, 16)
	return &Server{
		grpcServer:  srv,
		health:      hs,
		listener:    listener,
		socketPath:  socketPath,
		logger:      logger,
		passes:      passes,
		unsubscribe: unsub,
		done:        make(chan struct{}),
	}, nil
}

// Start follows pass results and begins serving gRPC requests. Blocks until
// stopped.
func (s *Server) Start() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case evt := <-s.passes:
				s.observe(evt)
			case <-s.done:
				return
			}
		}
	}()

	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	err := s.grpcServer.Serve(s.listener)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (s *Server) observe(evt bus.Event) {
	report, ok := evt.Payload.(intsync.PassReport)
	if !ok {
		return
	}
	status := healthpb.HealthCheckResponse_SERVING
	if report.Err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(HealthService, status)
	s.logger.Debug("health updated", zap.String("status", status.String()))
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(_ context.Context) {
	s.logger.Info("gRPC server stopping")
	s.unsubscribe()
	close(s.done)
	s.wg.Wait()
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	_ = s.listener.Close()
	_ = os.Remove(s.socketPath)
}

// CheckHealth asks the daemon listening on socketPath for the status of
// HealthService.
func CheckHealth(ctx context.Context, socketPath string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial daemon: %w", err)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus(), nil
}
