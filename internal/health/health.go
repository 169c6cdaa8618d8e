package health

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Pinger is anything with a liveness round trip, such as the history store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Queue reports how many writes are waiting to reach a backend.
type Queue interface {
	Pending() int
}

// Check names one dependency to test. Queue is optional.
type Check struct {
	Name   string
	Pinger Pinger
	Queue  Queue
}

// Result is the outcome of one Check.
type Result struct {
	Backend string        `json:"backend"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Queued  int           `json:"queued"`
	Error   string        `json:"error,omitempty"`
}

// Report is what /readyz serves and the gRPC health service mirrors.
type Report struct {
	Ready     bool      `json:"ready"`
	Backends  []Result  `json:"backends"`
	CheckedAt time.Time `json:"checked_at"`
}

// String renders the report as a single log line, e.g.
//
//	relay not ready: history:redis down 12ms queued=41 (ping failed: ...)
func (r Report) String() string {
	var b strings.Builder
	if r.Ready {
		b.WriteString("relay ready:")
	} else {
		b.WriteString("relay not ready:")
	}
	for i, res := range r.Backends {
		if i > 0 {
			b.WriteByte(',')
		}
		state := "up"
		if !res.OK {
			state = "down"
		}
		fmt.Fprintf(&b, " %s %s %dms queued=%d", res.Backend, state, res.Latency.Milliseconds(), res.Queued)
		if res.Error != "" {
			fmt.Fprintf(&b, " (%s)", res.Error)
		}
	}
	return b.String()
}

// CheckAll runs every check in order.
func CheckAll(ctx context.Context, checks ...Check) Report {
	rep := Report{Ready: true, Backends: make([]Result, 0, len(checks))}
	for _, c := range checks {
		res := run(ctx, c)
		rep.Ready = rep.Ready && res.OK
		rep.Backends = append(rep.Backends, res)
	}
	rep.CheckedAt = time.Now().UTC()
	return rep
}

func run(ctx context.Context, c Check) Result {
	res := Result{Backend: c.Name}
	if c.Queue != nil {
		res.Queued = c.Queue.Pending()
	}
	if c.Pinger == nil {
		res.Error = "not configured"
		return res
	}
	start := time.Now()
	err := c.Pinger.Ping(ctx)
	res.Latency = time.Since(start)
	if err != nil {
		res.Error = fmt.Sprintf("ping failed: %v", err)
		return res
	}
	res.OK = true
	return res
}
