package httpapi

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"royaltyhub.org/internal/obs"
)

type probeFunc func(ctx context.Context) error

func (f probeFunc) Check(ctx context.Context) error { return f(ctx) }

func startHealth(t *testing.T, probe ReadyProbe) (*HealthReporter, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	reporter := NewHealthReporter(probe)
	reporter.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return reporter, healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthReporterServing(t *testing.T) {
	reporter, client := startHealth(t, probeFunc(func(context.Context) error { return nil }))

	if got := status(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial status = %v", got)
	}
	if err := reporter.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	for _, svc := range []string{"", obs.ServiceName} {
		if got := status(t, client, svc); got != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("status(%q) = %v", svc, got)
		}
	}
}

func TestHealthReporterProbeFailure(t *testing.T) {
	healthy := true
	reporter, client := startHealth(t, probeFunc(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("database unreachable")
	}))

	if err := reporter.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	healthy = false
	if err := reporter.Refresh(context.Background()); err == nil {
		t.Fatal("expected probe error")
	}
	if got := status(t, client, obs.ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v, want NOT_SERVING", got)
	}
}
