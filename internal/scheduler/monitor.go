package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/romonitor/internal/probe"
	"github.com/hamed0406/romonitor/internal/repo"
	"github.com/hamed0406/romonitor/internal/tracker"
)

// Sampler measures downstream bandwidth in Mbps.
type Sampler interface {
	Sample(ctx context.Context, url string) (float64, error)
}

type Options struct {
	Interval       time.Duration
	CycleDeadline  time.Duration // bounds the probe phase; 0 means 80% of Interval
	ProbeDeadline  time.Duration
	PublishTimeout time.Duration
	MaxInFlight    int
	BandwidthURL   string // empty disables sampling
}

type Monitor struct {
	Logger    *zap.Logger
	Inventory repo.InventorySource
	Prober    probe.Prober
	Sampler   Sampler
	Tracker   *tracker.Tracker
	Publisher repo.IncidentPublisher

	opts Options
	now  func() time.Time

	cycle    uint64 // touched only by the goroutine running cycles
	inFlight atomic.Int64
	state    atomic.Pointer[published]
}

type published struct {
	report CycleReport
	sites  []tracker.Entry
}

func NewMonitor(
	logger *zap.Logger,
	inv repo.InventorySource,
	prober probe.Prober,
	sampler Sampler,
	tr *tracker.Tracker,
	pub repo.IncidentPublisher,
	opts Options,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.CycleDeadline <= 0 || opts.CycleDeadline > opts.Interval {
		opts.CycleDeadline = opts.Interval * 8 / 10
	}
	if opts.ProbeDeadline <= 0 {
		opts.ProbeDeadline = 10 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 10 * time.Second
	}
	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = 64
	}
	if tr == nil {
		tr = tracker.New(tracker.Policy{})
	}
	return &Monitor{
		Logger:    logger,
		Inventory: inv,
		Prober:    prober,
		Sampler:   sampler,
		Tracker:   tr,
		Publisher: pub,
		opts:      opts,
		now:       time.Now,
	}
}

// Run does an immediate cycle, then one per interval measured from the start.
// A cycle that overruns its slot is followed immediately by the next one.
// Stops when ctx is cancelled; the cycle in progress finishes its publishes.
func (m *Monitor) Run(ctx context.Context) {
	m.Logger.Info("monitor_started",
		zap.Duration("interval", m.opts.Interval),
		zap.Duration("cycle_deadline", m.opts.CycleDeadline),
		zap.Duration("probe_deadline", m.opts.ProbeDeadline),
		zap.Int("threshold", m.Tracker.Policy().Threshold),
		zap.String("emit_mode", string(m.Tracker.Policy().Mode)),
	)

	next := time.Now()
	for {
		m.RunCycle(ctx)
		if ctx.Err() != nil {
			m.Logger.Info("monitor_stopped")
			return
		}

		next = next.Add(m.opts.Interval)
		wait := time.Until(next)
		if wait <= 0 {
			m.Logger.Warn("cycle_overrun", zap.Duration("behind", -wait))
			next = time.Now()
			continue
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			m.Logger.Info("monitor_stopped")
			return
		case <-t.C:
		}
	}
}

// InFlightPublishes is the number of Publish calls currently running.
func (m *Monitor) InFlightPublishes() int64 { return m.inFlight.Load() }

// LastReport returns the most recent cycle summary.
func (m *Monitor) LastReport() (CycleReport, bool) {
	p := m.state.Load()
	if p == nil {
		return CycleReport{}, false
	}
	return p.report, true
}

// SiteStates returns tracker entries as of the end of the last cycle.
func (m *Monitor) SiteStates() []tracker.Entry {
	p := m.state.Load()
	if p == nil {
		return nil
	}
	out := make([]tracker.Entry, len(p.sites))
	copy(out, p.sites)
	return out
}

func (m *Monitor) publishState(r CycleReport) {
	m.state.Store(&published{report: r, sites: m.Tracker.Snapshot()})
}
