package domain

import (
	"strings"
	"time"
)

type SiteCode string

// Endpoint is a network address that may be absent. The zero value is absent,
// which is how a single-homed site carries its secondary.
type Endpoint struct {
	addr string
}

func NewEndpoint(addr string) Endpoint {
	return Endpoint{addr: strings.TrimSpace(addr)}
}

func (e Endpoint) Present() bool  { return e.addr != "" }
func (e Endpoint) String() string { return e.addr }

func (e Endpoint) MarshalText() ([]byte, error) { return []byte(e.addr), nil }

func (e *Endpoint) UnmarshalText(b []byte) error {
	*e = NewEndpoint(string(b))
	return nil
}

type Site struct {
	Code      SiteCode `json:"code"`
	Primary   Endpoint `json:"primary"`
	Secondary Endpoint `json:"secondary"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Region    string   `json:"region"`
}

func (s Site) DualHomed() bool { return s.Secondary.Present() }

type EndpointClass string

const (
	Primary   EndpointClass = "Primary"
	Secondary EndpointClass = "Secondary"
)

type SiteStatus string

const (
	Healthy SiteStatus = "Healthy"
	Partial SiteStatus = "Partial"
	Offline SiteStatus = "Offline"
)

// Reachability is the outcome for an optional endpoint in one cycle.
type Reachability int

const (
	Absent Reachability = iota
	Reachable
	Unreachable
)

func ReachabilityOf(up bool) Reachability {
	if up {
		return Reachable
	}
	return Unreachable
}

func (r Reachability) String() string {
	switch r {
	case Reachable:
		return "up"
	case Unreachable:
		return "down"
	default:
		return "absent"
	}
}

type Incident struct {
	SiteCode      SiteCode      `json:"site_code"`
	Endpoint      string        `json:"endpoint"`
	EndpointClass EndpointClass `json:"endpoint_class"`
	Status        SiteStatus    `json:"status"`
	City          string        `json:"city"`
	State         string        `json:"state"`
	Region        string        `json:"region"`
	BandwidthMbps *float64      `json:"bandwidth_mbps"` // nil when the sample failed
	Cycle         uint64        `json:"cycle"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
