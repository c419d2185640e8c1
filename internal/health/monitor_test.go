package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu    sync.Mutex
	err   error
	block bool
	calls atomic.Int32
}

func (p *fakeProber) Health(ctx context.Context) error {
	p.calls.Add(1)
	p.mu.Lock()
	err, block := p.err, p.block
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (p *fakeProber) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type fakeSession struct {
	established atomic.Bool
	clears      atomic.Int32
}

func (s *fakeSession) Established() bool { return s.established.Load() }
func (s *fakeSession) Clear() {
	s.clears.Add(1)
	s.established.Store(false)
}

func TestCheck_Healthy(t *testing.T) {
	sess := &fakeSession{}
	sess.established.Store(true)
	m := NewMonitor(&fakeProber{}, clockwork.NewFakeClock())
	m.Bind(sess)

	var seen []bool
	m.OnStatus(func(ok bool) { seen = append(seen, ok) })

	assert.True(t, m.Check(context.Background()))
	assert.True(t, m.Available())
	assert.Equal(t, int32(0), sess.clears.Load())
	assert.Equal(t, []bool{true}, seen)
}

func TestCheck_FailureClearsSession(t *testing.T) {
	sess := &fakeSession{}
	sess.established.Store(true)
	prober := &fakeProber{err: errors.New("HTTP 503")}
	m := NewMonitor(prober, clockwork.NewFakeClock())
	m.Bind(sess)

	var seen []bool
	m.OnStatus(func(ok bool) { seen = append(seen, ok) })

	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.Available())
	assert.Equal(t, int32(1), sess.clears.Load())
	assert.Equal(t, []bool{false}, seen)

	// Recovery flips the flag back without touching the session.
	prober.fail(nil)
	assert.True(t, m.Check(context.Background()))
	assert.True(t, m.Available())
	assert.Equal(t, int32(1), sess.clears.Load())
}

func TestCheck_ClearsEvenWithoutEstablishedSession(t *testing.T) {
	sess := &fakeSession{}
	m := NewMonitor(&fakeProber{err: errors.New("refused")}, clockwork.NewFakeClock())
	m.Bind(sess)

	m.Check(context.Background())
	assert.Equal(t, int32(1), sess.clears.Load())
}

func TestCheck_TimeoutIsFailure(t *testing.T) {
	sess := &fakeSession{}
	m := NewMonitor(&fakeProber{block: true}, clockwork.NewFakeClock())
	m.SetProbeTimeout(20 * time.Millisecond)
	m.Bind(sess)

	start := time.Now()
	assert.False(t, m.Check(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, m.Available())
	assert.Equal(t, int32(1), sess.clears.Load())
}

func TestCheck_CallerCancelIsNotAnObservation(t *testing.T) {
	sess := &fakeSession{}
	m := NewMonitor(&fakeProber{block: true}, clockwork.NewFakeClock())
	m.Bind(sess)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, m.Check(ctx))
	assert.True(t, m.Available())
	assert.Equal(t, int32(0), sess.clears.Load())
}

func TestCheck_NoSessionBound(t *testing.T) {
	m := NewMonitor(&fakeProber{err: errors.New("down")}, nil)
	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.Available())
}

func TestStart_ProbesOnlyWhileEstablished(t *testing.T) {
	clock := clockwork.NewFakeClock()
	prober := &fakeProber{}
	sess := &fakeSession{}
	m := NewMonitor(prober, clock)
	m.Bind(sess)

	stop := m.Start()
	defer stop()

	clock.Advance(DefaultInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), prober.calls.Load(), "no probe without a session")

	sess.established.Store(true)
	clock.Advance(DefaultInterval)
	require.Eventually(t, func() bool { return prober.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), sess.clears.Load())
}

func TestStart_FailureClearsSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	prober := &fakeProber{err: errors.New("connection refused")}
	sess := &fakeSession{}
	sess.established.Store(true)
	m := NewMonitor(prober, clock)
	m.Bind(sess)

	stop := m.Start()
	defer stop()

	clock.Advance(DefaultInterval)
	require.Eventually(t, func() bool { return sess.clears.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, m.Available())

	// Session is gone, so further ticks do not probe.
	clock.Advance(DefaultInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), prober.calls.Load())
}

func TestStart_StopHaltsTicker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	prober := &fakeProber{}
	sess := &fakeSession{}
	sess.established.Store(true)
	m := NewMonitor(prober, clock)
	m.Bind(sess)

	stop := m.Start()
	assert.NotNil(t, m.Start(), "second Start returns the running stop func")

	stop()
	stop() // idempotent

	clock.Advance(3 * DefaultInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), prober.calls.Load())

	// A stopped monitor can be started again.
	stop = m.Start()
	defer stop()
	clock.Advance(DefaultInterval)
	require.Eventually(t, func() bool { return prober.calls.Load() == 1 }, time.Second, time.Millisecond)
}
