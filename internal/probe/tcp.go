package probe

import (
	"context"
	"net"
	"strconv"
	"time"
)

// TCPProber treats a completed TCP handshake as reachability. Useful where
// ICMP is filtered or the process cannot open ping sockets.
type TCPProber struct {
	Port   int
	Dialer *net.Dialer
}

func NewTCPProber(port int) *TCPProber {
	if port <= 0 || port > 65535 {
		port = 80
	}
	return &TCPProber{Port: port, Dialer: &net.Dialer{}}
}

func (p *TCPProber) Probe(ctx context.Context, endpoint string) Result {
	address := endpoint
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		address = net.JoinHostPort(endpoint, strconv.Itoa(p.Port))
	}

	start := time.Now()
	conn, err := p.Dialer.DialContext(ctx, "tcp", address)
	latency := sinceMS(start)
	if err != nil {
		return Result{Message: "tcp: " + err.Error(), LatencyMS: latency}
	}
	_ = conn.Close()
	return Result{Up: true, LatencyMS: latency, Message: "tcp connect ok"}
}
