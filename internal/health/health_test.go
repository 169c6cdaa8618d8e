package health

import (
	"context"
	"errors"
	"strings"
	"testing"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type queueLen int

func (q queueLen) Pending() int { return int(q) }

func TestCheckAll(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	bad := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	st := CheckAll(context.Background(), Check{Name: "history", Pinger: ok})
	if !st.Ready || len(st.Backends) != 1 || !st.Backends[0].OK {
		t.Fatalf("expected healthy report, got %+v", st)
	}

	st = CheckAll(context.Background(), Check{Name: "history", Pinger: ok}, Check{Name: "cache", Pinger: bad}, Check{Name: "none"})
	if st.Ready {
		t.Fatalf("a failing check must fail the report")
	}
	if st.Backends[1].OK || !strings.Contains(st.Backends[1].Error, "refused") {
		t.Fatalf("unexpected cache result %+v", st.Backends[1])
	}
	if st.Backends[2].Error != "not configured" {
		t.Fatalf("nil pinger should report not configured, got %q", st.Backends[2].Error)
	}
}

func TestReportStringShowsBackendAndQueueDepth(t *testing.T) {
	bad := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })
	st := CheckAll(context.Background(), Check{Name: "history:redis", Pinger: bad, Queue: queueLen(41)})
	if st.Backends[0].Queued != 41 {
		t.Fatalf("expected queue depth 41, got %d", st.Backends[0].Queued)
	}
	out := st.String()
	if strings.Contains(out, "\n") {
		t.Fatalf("expected a single line, got %q", out)
	}
	if !strings.HasPrefix(out, "relay not ready: history:redis down ") {
		t.Fatalf("unexpected rendering %q", out)
	}
	if !strings.Contains(out, "queued=41 (ping failed: dial tcp: refused)") {
		t.Fatalf("missing queue depth or error in %q", out)
	}

	ok := pingFunc(func(context.Context) error { return nil })
	out = CheckAll(context.Background(), Check{Name: "history:sqlite", Pinger: ok}).String()
	if !strings.HasPrefix(out, "relay ready: history:sqlite up ") || !strings.HasSuffix(out, "queued=0") {
		t.Fatalf("unexpected rendering %q", out)
	}
}

func TestApplySetsServingStatus(t *testing.T) {
	hs := grpchealth.NewServer()
	ctx := context.Background()

	Apply(hs, Report{Ready: false})
	resp, err := hs.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", resp.Status)
	}

	Apply(hs, Report{Ready: true})
	resp, err = hs.Check(ctx, &healthpb.HealthCheckRequest{Service: ""})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.Status)
	}
}

func TestWatchShutsDownOnCancel(t *testing.T) {
	hs := grpchealth.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Watch(ctx, hs, 0, Check{Name: "history", Pinger: pingFunc(func(context.Context) error { return nil })})
		close(done)
	}()
	cancel()
	<-done
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after shutdown, got %v", resp.Status)
	}
}
