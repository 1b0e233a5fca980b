// Package health exposes the standard gRPC health service, driven by
// periodic checks of the service's backing stores.
package health

import (
	"context"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"hyaluron-watch/pkg/logger"
)

// ServiceName is the health service name reported next to the overall status
const ServiceName = "hyaluronwatch.v1.DetectionService"

const defaultInterval = 10 * time.Second

// Pinger is a dependency that must be reachable to serve
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker keeps the gRPC health status in sync with its dependencies
type Checker struct {
	server   *grpchealth.Server
	deps     map[string]Pinger
	interval time.Duration
	logger   *logger.Logger
}

// NewChecker creates a checker. Nil dependencies are ignored.
func NewChecker(deps map[string]Pinger, interval time.Duration, log *logger.Logger) *Checker {
	if interval <= 0 {
		interval = defaultInterval
	}
	c := &Checker{
		server:   grpchealth.NewServer(),
		deps:     deps,
		interval: interval,
		logger:   log.WithComponent("grpc-health"),
	}
	c.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	return c
}

// Register registers the health service with a gRPC server
func (c *Checker) Register(grpcServer *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcServer, c.server)
}

// Server returns the underlying health server
func (c *Checker) Server() *grpchealth.Server {
	return c.server
}

// Run checks the dependencies every interval until ctx is cancelled, then
// marks the service as not serving
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check pings every dependency once and updates the serving status
func (c *Checker) Check(ctx context.Context) bool {
	healthy := true
	for name, dep := range c.deps {
		if dep == nil {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			healthy = false
		}
	}

	if healthy {
		c.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	} else {
		c.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return healthy
}

func (c *Checker) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)
}
