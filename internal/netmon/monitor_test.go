package netmon

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeSource delivers states pushed by the test and counts unsubscribes.
type fakeSource struct {
	mu           sync.Mutex
	fetchState   State
	fn           func(State)
	unsubscribes int
}

func (f *fakeSource) Fetch(ctx context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchState, nil
}

func (f *fakeSource) Subscribe(fn func(State)) func() {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubscribes++
		f.mu.Unlock()
	}
}

func (f *fakeSource) push(s State) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func connected(ok bool) State {
	return State{IsConnected: &ok, IsInternetReachable: &ok}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestMonitor_InitialOptimisticOnline(t *testing.T) {
	m := NewMonitor(&fakeSource{})
	if !m.Status().IsOnline {
		t.Error("initial state should be optimistically online")
	}
	if m.Status().IsInternetReachable != nil {
		t.Error("reachability should start unknown")
	}
}

func TestMonitor_StartProbesImmediately(t *testing.T) {
	src := &fakeSource{fetchState: connected(false)}
	m := NewMonitor(src)
	m.Start(context.Background())
	defer m.Stop()

	waitFor(t, func() bool { return !m.Status().IsOnline })
}

func TestMonitor_UnknownSignalMeansOffline(t *testing.T) {
	src := &fakeSource{fetchState: connected(true)}
	m := NewMonitor(src)
	m.Start(context.Background())
	defer m.Stop()

	waitFor(t, func() bool { return m.Status().IsOnline })

	src.push(State{}) // absent signals
	waitFor(t, func() bool { return !m.Status().IsOnline })
}

func TestMonitor_EdgeTriggeredOnlineCallback(t *testing.T) {
	src := &fakeSource{fetchState: connected(true)}
	m := NewMonitor(src)

	var mu sync.Mutex
	fired := 0
	m.OnOnline(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	m.Start(context.Background())
	defer m.Stop()
	waitFor(t, func() bool { return m.Status().IsOnline })

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return fired
	}

	// Level, not edge: staying online must not re-fire.
	src.push(connected(true))
	if count() != 0 {
		t.Fatalf("callback fired %d times while staying online", count())
	}

	src.push(connected(false))
	src.push(connected(true))
	waitFor(t, func() bool { return count() == 1 })

	src.push(connected(true))
	if count() != 1 {
		t.Errorf("callback fired %d times, want 1", count())
	}
}

func TestMonitor_StopReleasesSubscriptionOnce(t *testing.T) {
	src := &fakeSource{fetchState: connected(true)}
	m := NewMonitor(src)
	m.Start(context.Background())

	m.Stop()
	m.Stop()

	src.mu.Lock()
	n := src.unsubscribes
	src.mu.Unlock()
	if n != 1 {
		t.Errorf("unsubscribed %d times, want exactly 1", n)
	}

	// No updates after teardown.
	src.push(connected(false))
	if !m.Status().IsOnline && m.Status().IsInternetReachable != nil {
		t.Error("state changed after Stop")
	}
}

func TestMonitor_NoUpdatesAfterStop(t *testing.T) {
	src := &fakeSource{fetchState: connected(false)}
	m := NewMonitor(src)
	m.Start(context.Background())
	waitFor(t, func() bool { return !m.Status().IsOnline })

	m.Stop()
	src.push(connected(true))
	time.Sleep(20 * time.Millisecond)

	if m.Status().IsOnline {
		t.Error("snapshot updated after teardown")
	}
}
