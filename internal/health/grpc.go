package health

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "sketchsync.Relay"

// NewGRPCServer returns a gRPC server exposing only the standard health
// service, plus the health server so callers can drive its status.
func NewGRPCServer() (*grpc.Server, *grpchealth.Server) {
	kap := keepalive.ServerParameters{
		MaxConnectionIdle:     2 * time.Minute,
		MaxConnectionAge:      15 * time.Minute,
		MaxConnectionAgeGrace: 30 * time.Second,
		Time:                  30 * time.Second,
		Timeout:               10 * time.Second,
	}
	kasp := keepalive.EnforcementPolicy{
		MinTime:             10 * time.Second,
		PermitWithoutStream: true,
	}
	s := grpc.NewServer(grpc.KeepaliveParams(kap), grpc.KeepaliveEnforcementPolicy(kasp))
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// Apply publishes status to the health server.
func Apply(hs *grpchealth.Server, status Report) {
	st := healthpb.HealthCheckResponse_SERVING
	if !status.Ready {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(ServiceName, st)
}

// Watch re-runs the checks every interval and publishes the result until ctx
// is done, at which point every service is marked NOT_SERVING.
func Watch(ctx context.Context, hs *grpchealth.Server, interval time.Duration, checks ...Check) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	publish := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		status := CheckAll(pctx, checks...)
		if !status.Ready {
			log.Printf("[health] %s", status)
		}
		Apply(hs, status)
	}
	publish()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			publish()
		}
	}
}
