package scheduler

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/romonitor/internal/domain"
	"github.com/hamed0406/romonitor/internal/probe"
)

type siteOutcome struct {
	primary   probe.Result
	secondary probe.Result
	err       error
}

func (o siteOutcome) secondaryReachability(s domain.Site) domain.Reachability {
	if !s.DualHomed() {
		return domain.Absent
	}
	return domain.ReachabilityOf(o.secondary.Up)
}

type probeJob struct {
	site  int
	class domain.EndpointClass
	code  domain.SiteCode
	addr  string
}

// probeAll fans probes out over a bounded pool and returns one outcome per
// site, in input order. It returns once every probe has reported or ctx,
// which carries the cycle deadline, ends; endpoints that have not reported by
// then are unreachable.
func (m *Monitor) probeAll(ctx context.Context, log *zap.Logger, sites []domain.Site) []siteOutcome {
	var jobs []probeJob
	for i, s := range sites {
		jobs = append(jobs, probeJob{site: i, class: domain.Primary, code: s.Code, addr: s.Primary.String()})
		if s.DualHomed() {
			jobs = append(jobs, probeJob{site: i, class: domain.Secondary, code: s.Code, addr: s.Secondary.String()})
		}
	}
	outcomes := make([]siteOutcome, len(sites))
	if len(jobs) == 0 {
		return outcomes
	}

	workers := len(sites) * 2
	if workers > m.opts.MaxInFlight {
		workers = m.opts.MaxInFlight
	}
	sem := make(chan struct{}, workers)

	var (
		mu     sync.Mutex
		sealed bool
		wg     sync.WaitGroup
	)
	record := func(j probeJob, res probe.Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		if sealed {
			return
		}
		o := &outcomes[j.site]
		if err != nil {
			o.err = err
		}
		if j.class == domain.Primary {
			o.primary = res
		} else {
			o.secondary = res
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
	dispatch:
		for _, job := range jobs {
			j := job
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break dispatch
			}
			wg.Add(1)
			go func() {
				defer func() { <-sem }()
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						record(j, probe.Result{}, fmt.Errorf("%s probe of %s panicked: %v", j.class, j.addr, r))
					}
				}()

				pctx, pcancel := context.WithTimeout(ctx, m.opts.ProbeDeadline)
				defer pcancel()

				res := m.Prober.Probe(pctx, j.addr)
				record(j, res, nil)
				log.Debug("probe_result",
					zap.String("site_code", string(j.code)),
					zap.String("endpoint", j.addr),
					zap.String("network_type", string(j.class)),
					zap.Bool("up", res.Up),
					zap.Float64("latency_ms", res.LatencyMS),
					zap.String("reason", res.Message),
				)
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		default:
			log.Warn("cycle_deadline_exceeded", zap.Duration("deadline", m.opts.CycleDeadline))
		}
	}

	mu.Lock()
	sealed = true
	out := make([]siteOutcome, len(outcomes))
	copy(out, outcomes)
	mu.Unlock()
	return out
}
