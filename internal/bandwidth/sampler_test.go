package bandwidth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns base, base+step, base+2*step... on successive calls.
func steppingClock(step time.Duration) func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		t := base.Add(time.Duration(calls) * step)
		calls++
		return t
	}
}

func payloadServer(t *testing.T, size int) *httptest.Server {
	t.Helper()
	body := make([]byte, size)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(size))
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestMbps_Formula(t *testing.T) {
	got, err := Mbps(1<<20, time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, got, 1e-9)

	got, err = Mbps(5_000_000, 2500*time.Millisecond)
	require.NoError(t, err)
	assert.InDelta(t, 5_000_000*8/(2.5*1048576), got, 1e-9)

	got, err = Mbps(0, time.Second)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestMbps_ZeroElapsed(t *testing.T) {
	_, err := Mbps(100, 0)
	assert.ErrorIs(t, err, ErrZeroElapsed)
}

func TestSample_OneMebibyteInOneSecond(t *testing.T) {
	s := payloadServer(t, 1_048_576)

	smp := NewSampler()
	smp.now = steppingClock(time.Second)

	got, err := smp.Sample(context.Background(), s.URL)
	require.NoError(t, err)
	assert.InEpsilon(t, 8.0, got, 0.01)
}

func TestSample_RealClockIsPositive(t *testing.T) {
	s := payloadServer(t, 256<<10)

	got, err := NewSampler().Sample(context.Background(), s.URL)
	require.NoError(t, err)
	assert.Greater(t, got, 0.0)
}

func TestSample_Non2xxFails(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer s.Close()

	_, err := NewSampler().Sample(context.Background(), s.URL)
	assert.Error(t, err)
}

func TestSample_DeadlineAbortsSlowDownload(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewSampler().Sample(ctx, s.URL)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSample_BadURL(t *testing.T) {
	_, err := NewSampler().Sample(context.Background(), "://nope")
	assert.Error(t, err)
}

// sizeRecorder hands out data in chunks and records each buffer length it sees.
type sizeRecorder struct {
	r     io.Reader
	sizes []int
	err   error
}

func (s *sizeRecorder) Read(p []byte) (int, error) {
	s.sizes = append(s.sizes, len(p))
	n, err := s.r.Read(p)
	if errors.Is(err, io.EOF) && s.err != nil {
		return n, s.err
	}
	return n, err
}

func TestDrain_ReadsThroughFixedBuffer(t *testing.T) {
	src := &sizeRecorder{r: bytes.NewReader(make([]byte, 100_000))}

	n, err := drain(src, make([]byte, readBufBytes))
	require.NoError(t, err)
	assert.EqualValues(t, 100_000, n)
	require.NotEmpty(t, src.sizes)
	for _, sz := range src.sizes {
		assert.Equal(t, readBufBytes, sz)
	}
}

func TestDrain_ReturnsReadError(t *testing.T) {
	boom := errors.New("connection reset")
	src := &sizeRecorder{r: bytes.NewReader(make([]byte, 10)), err: boom}

	n, err := drain(src, make([]byte, readBufBytes))
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 10, n)
}
