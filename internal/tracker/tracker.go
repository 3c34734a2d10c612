// Package tracker holds the per-site consecutive-failure state machine.
//
// A Tracker is not safe for concurrent use. The scheduler owns it and only
// touches it from its serial reduce phase.
package tracker

import (
	"sort"

	"github.com/hamed0406/romonitor/internal/domain"
)

const DefaultThreshold = 5

type EmitMode string

const (
	// EmitEveryCycle emits an incident on every cycle at or above threshold.
	EmitEveryCycle EmitMode = "every_cycle"
	// EmitOncePerOutage emits on the first crossing, then every
	// ReminderCycles cycles if that is set.
	EmitOncePerOutage EmitMode = "once_per_outage"
)

type Policy struct {
	Threshold      int
	Mode           EmitMode
	ReminderCycles int
}

type Entry struct {
	Code                     domain.SiteCode   `json:"code"`
	ConsecutiveUnhealthy     int               `json:"consecutive_unhealthy_cycles"`
	LastStatus               domain.SiteStatus `json:"last_status"`
	LastSeenCycle            uint64            `json:"last_seen_cycle"`
	LastIncidentEmittedCycle *uint64           `json:"last_incident_emitted_cycle,omitempty"`
}

type Tracker struct {
	policy  Policy
	entries map[domain.SiteCode]*Entry
}

func New(p Policy) *Tracker {
	if p.Threshold < 1 {
		p.Threshold = DefaultThreshold
	}
	if p.Mode == "" {
		p.Mode = EmitEveryCycle
	}
	if p.ReminderCycles < 0 {
		p.ReminderCycles = 0
	}
	return &Tracker{policy: p, entries: make(map[domain.SiteCode]*Entry)}
}

func (t *Tracker) Policy() Policy { return t.policy }

// Classify derives a site's status from one cycle of probe outcomes.
// A single-homed site is never Offline.
func Classify(primaryUp bool, secondary domain.Reachability) domain.SiteStatus {
	switch {
	case primaryUp && secondary != domain.Unreachable:
		return domain.Healthy
	case !primaryUp && secondary == domain.Unreachable:
		return domain.Offline
	default:
		return domain.Partial
	}
}

// FailingClass names the endpoint an incident reports. Primary wins when
// both are down.
func FailingClass(primaryUp bool) domain.EndpointClass {
	if !primaryUp {
		return domain.Primary
	}
	return domain.Secondary
}

// RecordCycle applies one cycle of outcomes for code and reports whether the
// unhealthy streak has reached the threshold.
func (t *Tracker) RecordCycle(code domain.SiteCode, primaryUp bool, secondary domain.Reachability) (domain.SiteStatus, bool) {
	return t.record(code, 0, primaryUp, secondary)
}

// RecordCycleAt is RecordCycle with the cycle number stored on the entry.
func (t *Tracker) RecordCycleAt(cycle uint64, code domain.SiteCode, primaryUp bool, secondary domain.Reachability) (domain.SiteStatus, bool) {
	return t.record(code, cycle, primaryUp, secondary)
}

func (t *Tracker) record(code domain.SiteCode, cycle uint64, primaryUp bool, secondary domain.Reachability) (domain.SiteStatus, bool) {
	e := t.entry(code)
	status := Classify(primaryUp, secondary)
	e.LastStatus = status
	e.LastSeenCycle = cycle

	if status == domain.Healthy {
		e.ConsecutiveUnhealthy = 0
		e.LastIncidentEmittedCycle = nil
		return status, false
	}
	e.ConsecutiveUnhealthy++
	return status, e.ConsecutiveUnhealthy >= t.policy.Threshold
}

// ShouldEmit applies the emission policy to a site that has crossed the
// threshold in cycle.
func (t *Tracker) ShouldEmit(code domain.SiteCode, cycle uint64) bool {
	e, ok := t.entries[code]
	if !ok || e.ConsecutiveUnhealthy < t.policy.Threshold {
		return false
	}
	if t.policy.Mode != EmitOncePerOutage || e.LastIncidentEmittedCycle == nil {
		return true
	}
	if t.policy.ReminderCycles == 0 {
		return false
	}
	return cycle-*e.LastIncidentEmittedCycle >= uint64(t.policy.ReminderCycles)
}

func (t *Tracker) MarkEmitted(code domain.SiteCode, cycle uint64) {
	if e, ok := t.entries[code]; ok {
		c := cycle
		e.LastIncidentEmittedCycle = &c
	}
}

// Retain drops entries for sites not in keep and returns how many went.
func (t *Tracker) Retain(keep map[domain.SiteCode]struct{}) int {
	dropped := 0
	for code := range t.entries {
		if _, ok := keep[code]; !ok {
			delete(t.entries, code)
			dropped++
		}
	}
	return dropped
}

func (t *Tracker) Get(code domain.SiteCode) (Entry, bool) {
	e, ok := t.entries[code]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(e), true
}

func (t *Tracker) Len() int { return len(t.entries) }

// Snapshot returns copies of all entries ordered by site code.
func (t *Tracker) Snapshot() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (t *Tracker) entry(code domain.SiteCode) *Entry {
	e, ok := t.entries[code]
	if !ok {
		e = &Entry{Code: code, LastStatus: domain.Healthy}
		t.entries[code] = e
	}
	return e
}

func copyEntry(e *Entry) Entry {
	cp := *e
	if e.LastIncidentEmittedCycle != nil {
		v := *e.LastIncidentEmittedCycle
		cp.LastIncidentEmittedCycle = &v
	}
	return cp
}
