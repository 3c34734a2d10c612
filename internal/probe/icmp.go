package probe

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMPProber sends a single echo request per probe.
type ICMPProber struct {
	Privileged bool
	// Fallback budget when ctx has no deadline.
	Timeout time.Duration
}

func NewICMPProber(privileged bool, timeout time.Duration) *ICMPProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ICMPProber{Privileged: privileged, Timeout: timeout}
}

func (p *ICMPProber) Probe(ctx context.Context, endpoint string) Result {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{Message: err.Error()}
	}

	pinger, err := probing.NewPinger(endpoint)
	if err != nil {
		return Result{Message: "resolve: " + err.Error(), LatencyMS: sinceMS(start)}
	}
	pinger.Count = 1
	pinger.Timeout = p.budget(ctx)
	pinger.SetPrivileged(p.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return Result{Message: "icmp: " + err.Error(), LatencyMS: sinceMS(start)}
	}

	st := pinger.Statistics()
	if st.PacketsRecv == 0 {
		return Result{Message: "icmp: no reply", LatencyMS: sinceMS(start)}
	}
	return Result{
		Up:        true,
		LatencyMS: float64(st.AvgRtt) / float64(time.Millisecond),
		Message:   "icmp echo reply",
	}
}

func (p *ICMPProber) budget(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
		return time.Millisecond
	}
	return p.Timeout
}

func sinceMS(t time.Time) float64 {
	return time.Since(t).Seconds() * 1000
}
