package probe

import "context"

// Result is the outcome of probing one endpoint. Up is the only field the
// tracker consumes; the rest is for logs.
type Result struct {
	Up        bool
	LatencyMS float64
	Message   string
}

// Prober reports whether an endpoint answered before ctx expired. It never
// returns an error: every failure mode collapses into Up=false.
// Implementations must be safe for concurrent use.
type Prober interface {
	Probe(ctx context.Context, endpoint string) Result
}

type ProberFunc func(ctx context.Context, endpoint string) Result

func (f ProberFunc) Probe(ctx context.Context, endpoint string) Result { return f(ctx, endpoint) }
