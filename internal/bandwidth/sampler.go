// Package bandwidth measures download throughput against a reference payload.
package bandwidth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	bitsPerByte  = 8
	binaryMega   = 1 << 20
	readBufBytes = 8 << 10
)

var ErrZeroElapsed = errors.New("bandwidth: zero elapsed time")

type Sampler struct {
	Client *http.Client
	now    func() time.Time
}

// NewSampler returns a Sampler with no client-level timeout; the deadline
// comes from the ctx handed to Sample.
func NewSampler() *Sampler {
	return &Sampler{Client: &http.Client{}, now: time.Now}
}

// Sample downloads url in full and reports throughput in Mbps (2^20 bits).
// Timing starts once response headers arrive and ends at the last byte.
func (s *Sampler) Sample(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("bandwidth request: %w", err)
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("bandwidth fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return 0, fmt.Errorf("bandwidth fetch: unexpected status %s", resp.Status)
	}

	start := s.clock()()
	n, err := drain(resp.Body, make([]byte, readBufBytes))
	end := s.clock()()
	if err != nil {
		return 0, fmt.Errorf("bandwidth read after %d bytes: %w", n, err)
	}
	return Mbps(n, end.Sub(start))
}

// Mbps converts a transfer of n bytes over elapsed to binary megabits per second.
func Mbps(n int64, elapsed time.Duration) (float64, error) {
	if elapsed <= 0 {
		return 0, ErrZeroElapsed
	}
	return float64(n) * bitsPerByte / (elapsed.Seconds() * binaryMega), nil
}

func (s *Sampler) client() *http.Client {
	if s.Client == nil {
		return http.DefaultClient
	}
	return s.Client
}

func (s *Sampler) clock() func() time.Time {
	if s.now == nil {
		return time.Now
	}
	return s.now
}

// drain reads r to EOF through buf and counts the bytes.
func drain(r io.Reader, buf []byte) (int64, error) {
	var n int64
	for {
		k, err := r.Read(buf)
		n += int64(k)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}
