package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/romonitor/internal/domain"
)

// Inventory is a fixed site list. Duplicate codes keep the first occurrence.
type Inventory struct {
	mu    sync.RWMutex
	sites []domain.Site
	err   error
}

func NewInventory(sites []domain.Site) *Inventory {
	inv := &Inventory{}
	inv.Set(sites)
	return inv
}

// Set replaces the list returned by later snapshots.
func (m *Inventory) Set(sites []domain.Site) {
	seen := make(map[domain.SiteCode]struct{}, len(sites))
	out := make([]domain.Site, 0, len(sites))
	for _, s := range sites {
		if _, dup := seen[s.Code]; dup {
			continue
		}
		seen[s.Code] = struct{}{}
		out = append(out, s)
	}
	m.mu.Lock()
	m.sites = out
	m.mu.Unlock()
}

// Fail makes later snapshots return err until called again with nil.
func (m *Inventory) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Inventory) Snapshot(ctx context.Context) ([]domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Site, len(m.sites))
	copy(out, m.sites)
	return out, nil
}

// Recorder keeps published incidents in memory. If Err is set and returns
// non-nil the incident is not recorded.
type Recorder struct {
	Err func(domain.Incident) error

	mu        sync.Mutex
	incidents []domain.Incident
	calls     int
}

func (r *Recorder) Publish(ctx context.Context, in domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.Err != nil {
		if err := r.Err(in); err != nil {
			return err
		}
	}
	r.incidents = append(r.incidents, in)
	return nil
}

func (r *Recorder) Incidents() []domain.Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Incident, len(r.incidents))
	copy(out, r.incidents)
	return out
}

// Calls counts Publish invocations, failed ones included.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
