package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/romonitor/internal/domain"
	"github.com/hamed0406/romonitor/internal/tracker"
)

// CycleReport summarises one cycle.
type CycleReport struct {
	Cycle         uint64    `json:"cycle"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    float64   `json:"duration_ms"`
	Skipped       bool      `json:"skipped"`
	Error         string    `json:"error,omitempty"`
	Sites         int       `json:"sites"`
	Healthy       int       `json:"healthy"`
	Partial       int       `json:"partial"`
	Offline       int       `json:"offline"`
	SiteErrors    int       `json:"site_errors"`
	Incidents     int       `json:"incidents"`
	PublishErrors int       `json:"publish_errors"`
	BandwidthMbps *float64  `json:"bandwidth_mbps,omitempty"`
}

type dueIncident struct {
	site      domain.Site
	status    domain.SiteStatus
	primaryUp bool
}

// RunCycle executes one full cycle: snapshot, probe, reduce, publish.
func (m *Monitor) RunCycle(ctx context.Context) CycleReport {
	m.cycle++
	cycle := m.cycle
	started := m.now()
	rep := CycleReport{Cycle: cycle, StartedAt: started}
	log := m.Logger.With(zap.Uint64("cycle", cycle))

	// one deadline, fixed at cycle start, bounds probes and the bandwidth
	// sample together; publishes are detached from it
	cycleCtx, cancel := context.WithTimeout(ctx, m.opts.CycleDeadline)
	defer cancel()

	finish := func() CycleReport {
		rep.DurationMS = float64(m.now().Sub(started).Microseconds()) / 1000
		m.publishState(rep)
		return rep
	}

	sites, err := m.Inventory.Snapshot(ctx)
	if err != nil {
		rep.Skipped = true
		rep.Error = err.Error()
		log.Warn("cycle_inventory_error", zap.Error(err))
		return finish()
	}
	rep.Sites = len(sites)

	outcomes := m.probeAll(cycleCtx, log, sites)
	if ctx.Err() != nil {
		// outcomes gathered under a cancelled ctx say nothing about the sites
		rep.Skipped = true
		rep.Error = ctx.Err().Error()
		log.Info("cycle_aborted", zap.Error(ctx.Err()))
		return finish()
	}

	keep := make(map[domain.SiteCode]struct{}, len(sites))
	for _, s := range sites {
		keep[s.Code] = struct{}{}
	}
	if n := m.Tracker.Retain(keep); n > 0 {
		log.Info("tracker_pruned", zap.Int("removed", n))
	}

	var due []dueIncident
	for i, s := range sites {
		o := outcomes[i]
		if o.err != nil {
			rep.SiteErrors++
			log.Error("site_probe_error", zap.String("site_code", string(s.Code)), zap.Error(o.err))
			continue
		}
		d, ok, err := m.reduceSite(cycle, s, o)
		if err != nil {
			rep.SiteErrors++
			log.Error("site_reduce_error", zap.String("site_code", string(s.Code)), zap.Error(err))
			continue
		}
		switch d.status {
		case domain.Healthy:
			rep.Healthy++
		case domain.Partial:
			rep.Partial++
		case domain.Offline:
			rep.Offline++
		}
		if ok {
			due = append(due, d)
		}
	}

	if len(due) > 0 {
		bw := m.sampleBandwidth(cycleCtx, log)
		rep.BandwidthMbps = bw

		// publishes already decided on still run after shutdown starts
		pubCtx := context.WithoutCancel(ctx)
		for _, d := range due {
			in := m.buildIncident(cycle, d, bw)
			if err := m.publish(pubCtx, in); err != nil {
				rep.PublishErrors++
				log.Error("publish_error",
					zap.String("site_code", string(in.SiteCode)),
					zap.String("status", string(in.Status)),
					zap.Error(err),
				)
				continue
			}
			m.Tracker.MarkEmitted(in.SiteCode, cycle)
			rep.Incidents++
			log.Info("incident_published",
				zap.String("site_code", string(in.SiteCode)),
				zap.String("endpoint", in.Endpoint),
				zap.String("network_type", string(in.EndpointClass)),
				zap.String("status", string(in.Status)),
			)
		}
	}

	rep = finish()
	log.Info("cycle_done",
		zap.Int("sites", rep.Sites),
		zap.Int("healthy", rep.Healthy),
		zap.Int("partial", rep.Partial),
		zap.Int("offline", rep.Offline),
		zap.Int("site_errors", rep.SiteErrors),
		zap.Int("incidents", rep.Incidents),
		zap.Int("publish_errors", rep.PublishErrors),
		zap.Float64("duration_ms", rep.DurationMS),
	)
	return rep
}

func (m *Monitor) reduceSite(cycle uint64, s domain.Site, o siteOutcome) (d dueIncident, emit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	status, crossed := m.Tracker.RecordCycleAt(cycle, s.Code, o.primary.Up, o.secondaryReachability(s))
	d = dueIncident{site: s, status: status, primaryUp: o.primary.Up}
	if status != domain.Healthy {
		e, _ := m.Tracker.Get(s.Code)
		m.Logger.Info("site_unhealthy",
			zap.Uint64("cycle", cycle),
			zap.String("site_code", string(s.Code)),
			zap.String("status", string(status)),
			zap.Int("consecutive", e.ConsecutiveUnhealthy),
		)
	}
	return d, crossed && m.Tracker.ShouldEmit(s.Code, cycle), nil
}

func (m *Monitor) buildIncident(cycle uint64, d dueIncident, bw *float64) domain.Incident {
	class := tracker.FailingClass(d.primaryUp)
	addr := d.site.Primary.String()
	if class == domain.Secondary {
		addr = d.site.Secondary.String()
	}
	return domain.Incident{
		SiteCode:      d.site.Code,
		Endpoint:      addr,
		EndpointClass: class,
		Status:        d.status,
		City:          d.site.City,
		State:         d.site.State,
		Region:        d.site.Region,
		BandwidthMbps: bw,
		Cycle:         cycle,
		OccurredAt:    m.now(),
	}
}

// sampleBandwidth takes the one sample shared by every incident in a cycle,
// within whatever is left of the cycle deadline carried by ctx. nil means
// unknown.
func (m *Monitor) sampleBandwidth(ctx context.Context, log *zap.Logger) *float64 {
	if m.Sampler == nil || m.opts.BandwidthURL == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		log.Warn("bandwidth_sample_skipped", zap.Error(err))
		return nil
	}

	v, err := m.Sampler.Sample(ctx, m.opts.BandwidthURL)
	if err != nil {
		log.Warn("bandwidth_sample_error", zap.String("url", m.opts.BandwidthURL), zap.Error(err))
		return nil
	}
	log.Info("bandwidth_sampled", zap.Float64("mbps", v))
	return &v
}

func (m *Monitor) publish(ctx context.Context, in domain.Incident) (err error) {
	m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, m.opts.PublishTimeout)
	defer cancel()
	return m.Publisher.Publish(pctx, in)
}
