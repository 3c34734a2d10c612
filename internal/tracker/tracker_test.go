package tracker

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/romonitor/internal/domain"
)

type pair struct {
	primary   bool
	secondary domain.Reachability
}

var (
	up   = domain.Reachable
	down = domain.Unreachable
	none = domain.Absent
)

func TestClassify_Table(t *testing.T) {
	cases := []struct {
		primary   bool
		secondary domain.Reachability
		want      domain.SiteStatus
	}{
		{true, up, domain.Healthy},
		{true, none, domain.Healthy},
		{false, up, domain.Partial},
		{true, down, domain.Partial},
		{false, none, domain.Partial},
		{false, down, domain.Offline},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.primary, c.secondary), "primary=%v secondary=%v", c.primary, c.secondary)
	}
}

func TestFailingClass(t *testing.T) {
	assert.Equal(t, domain.Primary, FailingClass(false))
	assert.Equal(t, domain.Secondary, FailingClass(true))
}

func TestRecordCycle_ThresholdAndReset(t *testing.T) {
	tr := New(Policy{Threshold: 3})

	seq := []pair{{false, up}, {false, up}, {true, up}, {false, up}, {false, up}, {false, up}}
	var crossed []bool
	for _, p := range seq {
		_, c := tr.RecordCycle("R1", p.primary, p.secondary)
		crossed = append(crossed, c)
	}
	assert.Equal(t, []bool{false, false, false, false, false, true}, crossed)

	e, ok := tr.Get("R1")
	require.True(t, ok)
	assert.Equal(t, 3, e.ConsecutiveUnhealthy)
	assert.Equal(t, domain.Partial, e.LastStatus)
}

func TestRecordCycle_KeepsCrossingWhileDown(t *testing.T) {
	tr := New(Policy{Threshold: 2})
	for i := 1; i <= 5; i++ {
		status, crossed := tr.RecordCycle("R1", false, down)
		assert.Equal(t, domain.Offline, status)
		assert.Equal(t, i >= 2, crossed, "cycle %d", i)
	}
}

func TestNew_DefaultsThreshold(t *testing.T) {
	tr := New(Policy{})
	assert.Equal(t, DefaultThreshold, tr.Policy().Threshold)
	assert.Equal(t, EmitEveryCycle, tr.Policy().Mode)
}

// Randomised sequences checked against the invariants directly.
func TestRecordCycle_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const threshold = 3

	for run := 0; run < 200; run++ {
		dual := rng.Intn(2) == 0
		tr := New(Policy{Threshold: threshold})
		streak := 0

		for cycle := 0; cycle < 40; cycle++ {
			p := pair{primary: rng.Intn(3) != 0, secondary: none}
			if dual {
				p.secondary = domain.ReachabilityOf(rng.Intn(3) != 0)
			}

			status, crossed := tr.RecordCycle("S", p.primary, p.secondary)
			e, _ := tr.Get("S")

			if status == domain.Healthy {
				streak = 0
				require.Zero(t, e.ConsecutiveUnhealthy)
			} else {
				streak++
				require.NotZero(t, e.ConsecutiveUnhealthy)
			}
			require.Equal(t, streak >= threshold, crossed)
			if !dual {
				require.NotEqual(t, domain.Offline, status)
			}
		}
	}
}

// Interleaving other sites must not change a site's classification sequence.
func TestRecordCycle_IndependentOfOtherSites(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seq := make([]pair, 30)
	for i := range seq {
		seq[i] = pair{rng.Intn(2) == 0, domain.ReachabilityOf(rng.Intn(2) == 0)}
	}

	alone := New(Policy{Threshold: 3})
	var want []domain.SiteStatus
	var wantCrossed []bool
	for _, p := range seq {
		s, c := alone.RecordCycle("A", p.primary, p.secondary)
		want = append(want, s)
		wantCrossed = append(wantCrossed, c)
	}

	mixed := New(Policy{Threshold: 3})
	var got []domain.SiteStatus
	var gotCrossed []bool
	for _, p := range seq {
		others := []domain.SiteCode{"B", "C", "D"}
		for _, o := range others[:rng.Intn(len(others)+1)] {
			mixed.RecordCycle(o, rng.Intn(2) == 0, down)
		}
		s, c := mixed.RecordCycle("A", p.primary, p.secondary)
		got = append(got, s)
		gotCrossed = append(gotCrossed, c)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, wantCrossed, gotCrossed)
}

func TestShouldEmit_EveryCycle(t *testing.T) {
	tr := New(Policy{Threshold: 2, Mode: EmitEveryCycle})
	var emitted []uint64
	for c := uint64(1); c <= 5; c++ {
		if _, crossed := tr.RecordCycleAt(c, "R1", false, up); crossed && tr.ShouldEmit("R1", c) {
			tr.MarkEmitted("R1", c)
			emitted = append(emitted, c)
		}
	}
	assert.Equal(t, []uint64{2, 3, 4, 5}, emitted)
}

func TestShouldEmit_OncePerOutageWithReminder(t *testing.T) {
	tr := New(Policy{Threshold: 2, Mode: EmitOncePerOutage, ReminderCycles: 3})
	outcomes := []bool{false, false, false, false, false, false, true, false, false}
	var emitted []uint64
	for i, primaryUp := range outcomes {
		c := uint64(i + 1)
		if _, crossed := tr.RecordCycleAt(c, "R1", primaryUp, up); crossed && tr.ShouldEmit("R1", c) {
			tr.MarkEmitted("R1", c)
			emitted = append(emitted, c)
		}
	}
	// first crossing at 2, reminder at 5, recovery at 7, new outage crosses at 9
	assert.Equal(t, []uint64{2, 5, 9}, emitted)
}

func TestShouldEmit_OncePerOutageNoReminder(t *testing.T) {
	tr := New(Policy{Threshold: 1, Mode: EmitOncePerOutage})
	count := 0
	for c := uint64(1); c <= 10; c++ {
		if _, crossed := tr.RecordCycleAt(c, "R1", true, down); crossed && tr.ShouldEmit("R1", c) {
			tr.MarkEmitted("R1", c)
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestShouldEmit_UnknownOrBelowThreshold(t *testing.T) {
	tr := New(Policy{Threshold: 3})
	assert.False(t, tr.ShouldEmit("missing", 1))
	tr.RecordCycle("R1", false, up)
	assert.False(t, tr.ShouldEmit("R1", 1))
}

func TestRetain_DropsDepartedSites(t *testing.T) {
	tr := New(Policy{Threshold: 3})
	tr.RecordCycle("A", true, none)
	tr.RecordCycle("B", false, none)
	tr.RecordCycle("C", false, down)

	dropped := tr.Retain(map[domain.SiteCode]struct{}{"A": {}, "C": {}})
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 2, tr.Len())
	_, ok := tr.Get("B")
	assert.False(t, ok)

	// a returning site starts fresh
	tr.RecordCycle("B", false, none)
	e, _ := tr.Get("B")
	assert.Equal(t, 1, e.ConsecutiveUnhealthy)
}

func TestSnapshot_SortedCopies(t *testing.T) {
	tr := New(Policy{Threshold: 1})
	tr.RecordCycleAt(4, "Z", false, down)
	tr.RecordCycleAt(4, "A", true, up)
	tr.MarkEmitted("Z", 4)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, domain.SiteCode("A"), snap[0].Code)
	assert.Equal(t, domain.SiteCode("Z"), snap[1].Code)
	require.NotNil(t, snap[1].LastIncidentEmittedCycle)

	*snap[1].LastIncidentEmittedCycle = 99
	e, _ := tr.Get("Z")
	assert.Equal(t, uint64(4), *e.LastIncidentEmittedCycle)
}
