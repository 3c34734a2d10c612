package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/multierr"

	"github.com/hamed0406/romonitor/internal/domain"
)

const (
	IncidentHeader = "RO code, IP, Network Type, Timestamp, RO Status, City, State, Region, Bandwidth (Mbps)\n"
	// ISO-8601 local time with offset.
	TimestampLayout = "2006-01-02T15:04:05-07:00"
)

// IncidentLog appends one CSV row per incident to a file it keeps open.
type IncidentLog struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// OpenIncidentLog opens (or creates) path for appending. The header is written
// only when the file is new or empty.
func OpenIncidentLog(path string) (*IncidentLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure incident log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open incident log: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat incident log: %w", err)
	}
	if st.Size() == 0 {
		if _, err := io.WriteString(f, IncidentHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write incident log header: %w", err)
		}
	}
	return &IncidentLog{f: f, w: csv.NewWriter(f)}, nil
}

func (l *IncidentLog) Publish(ctx context.Context, in domain.Incident) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	if err := l.w.Write(Row(in)); err != nil {
		return fmt.Errorf("write incident: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flush incident: %w", err)
	}
	return nil
}

func (l *IncidentLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.w.Flush()
	err := multierr.Combine(l.w.Error(), l.f.Sync(), l.f.Close())
	l.f = nil
	return err
}

// Row renders an incident in header column order.
func Row(in domain.Incident) []string {
	return []string{
		string(in.SiteCode),
		in.Endpoint,
		string(in.EndpointClass),
		in.OccurredAt.Local().Format(TimestampLayout),
		string(in.Status),
		in.City,
		in.State,
		in.Region,
		FormatBandwidth(in.BandwidthMbps),
	}
}

// FormatBandwidth renders Mbps with two decimals, "0" when unknown.
func FormatBandwidth(v *float64) string {
	if v == nil {
		return "0"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
