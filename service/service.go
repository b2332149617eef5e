// Package service hosts the sidecar HTTP endpoints: a healthz probe that
// reports the current run and a prometheus metrics endpoint.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/devkit-infra/tester/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"
)

// httpServer is the shape shared by the hosted endpoint servers.
type httpServer interface {
	Start(ctx context.Context, addr string) error
	Shutdown() error
}

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer
}

func New(version string) *Service {
	return &Service{
		Healthz: NewHealthzServer(version),
		Metrics: &MetricsServer{},
	}
}

// Start brings up the endpoint servers in the background. Failures are
// recorded rather than fatal: the test run does not depend on the sidecar
// endpoints being reachable.
func (s *Service) Start(ctx context.Context) {
	serve(ctx, "healthz", net.JoinHostPort(HealthzHost, HealthzPort), s.Healthz)
	serve(ctx, "metrics", net.JoinHostPort(MetricsHost, MetricsPort), s.Metrics)
}

func serve(ctx context.Context, name string, addr string, server httpServer) {
	log.Info("Starting endpoint server", "name", name, "addr", addr)

	go func() {
		if err := server.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Endpoint server failed", "name", name, "err", err)
			metrics.RecordErrorDetails("error starting "+name+" server", err)
		}
	}()
}

func (s *Service) Shutdown() {
	if err := errors.Join(s.Healthz.Shutdown(), s.Metrics.Shutdown()); err != nil {
		log.Error("Error shutting down endpoint servers", "err", err)
		return
	}
	log.Info("Endpoint servers stopped")
}
