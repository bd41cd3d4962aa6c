// Package namesvc runs a standalone naming service: an in-memory naming
// context served over the wire protocol plus a gRPC health endpoint.
package namesvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/danmuck/rtmctl/internal/config"
	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/naming"
	"github.com/danmuck/rtmctl/internal/orb"
	"github.com/danmuck/rtmctl/internal/orb/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "rtm.NameService"

type Service struct {
	cfg    config.NamingConfig
	broker *orb.Broker
	root   *naming.MemoryContext
	health *health.Server
}

func NewService(cfg config.NamingConfig) *Service {
	broker := orb.NewBroker()
	root := naming.NewMemoryContext()
	// A fresh broker has no initial references, so this cannot collide.
	_ = broker.SetInitialReference(naming.InitialReference, root)
	return &Service{
		cfg:    cfg,
		broker: broker,
		root:   root,
		health: health.NewServer(),
	}
}

// Root is the served root naming context.
func (s *Service) Root() *naming.MemoryContext {
	return s.root
}

// Run listens on the configured addresses and serves until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := config.ValidateNamingConfig(s.cfg); err != nil {
		return err
	}
	wireLn, err := net.Listen("tcp", strings.TrimSpace(s.cfg.ListenAddr))
	if err != nil {
		return fmt.Errorf("namesvc: listen %s: %w", s.cfg.ListenAddr, err)
	}
	var healthLn net.Listener
	if addr := strings.TrimSpace(s.cfg.HealthListenAddr); addr != "" {
		healthLn, err = net.Listen("tcp", addr)
		if err != nil {
			_ = wireLn.Close()
			return fmt.Errorf("namesvc: listen health %s: %w", addr, err)
		}
	}
	return s.Serve(ctx, wireLn, healthLn)
}

// Serve runs on already-open listeners; healthLn may be nil.
func (s *Service) Serve(ctx context.Context, wireLn, healthLn net.Listener) error {
	advertise := strings.TrimSpace(s.cfg.AdvertiseAddr)
	if advertise == "" {
		advertise = wireLn.Addr().String()
	}
	peers := wire.NewClient(advertise, wire.WithDialTimeout(wire.DefaultDialTimeout))
	defer peers.Close()

	srv := wire.NewServer(s.broker, advertise, peers)
	if s.cfg.IdleTimeout > 0 {
		srv.IdleTimeout = s.cfg.IdleTimeout
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Serve(ctx, wireLn)
	}()

	var grpcServer *grpc.Server
	if healthLn != nil {
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, s.health)
		go func() {
			if err := grpcServer.Serve(healthLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("namesvc: health server: %w", err)
			}
		}()
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	logging.Infof("namesvc serving naming=%q advertise=%q health=%q", wireLn.Addr().String(), advertise, listenerAddr(healthLn))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}

	s.health.Shutdown()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	logging.Infof("namesvc stopped naming=%q", wireLn.Addr().String())
	return runErr
}

// Probe asks the health endpoint at addr for the naming service status.
func Probe(ctx context.Context, addr string, timeout time.Duration) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("namesvc: health dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("namesvc: health check %s: %w", addr, err)
	}
	return resp.GetStatus(), nil
}

func listenerAddr(ln net.Listener) string {
	if ln == nil {
		return ""
	}
	return ln.Addr().String()
}
