// Package netmon tracks network reachability and signals offline→online
// transitions to the sync engine.
package netmon

import (
	"context"
	"log/slog"
	"sync"
)

// State is the raw signal emitted by a Source. Nil means unknown.
type State struct {
	IsConnected         *bool
	IsInternetReachable *bool
}

// Status is the latest derived snapshot. An absent/unknown connected signal
// counts as offline.
type Status struct {
	IsOnline            bool
	IsInternetReachable *bool
}

// Source is the external connectivity signal: a one-shot fetch plus a push
// subscription. Subscribe returns the function that releases the
// subscription.
type Source interface {
	Fetch(ctx context.Context) (State, error)
	Subscribe(fn func(State)) (unsubscribe func())
}

// Monitor holds only the latest snapshot; transitions are not buffered.
type Monitor struct {
	mu          sync.Mutex
	source      Source
	status      Status
	started     bool
	stopped     bool
	unsubscribe func()

	onOnline func()
}

// NewMonitor starts out optimistically online so consumers do not show a
// flash of offline state before the first probe resolves.
func NewMonitor(source Source) *Monitor {
	return &Monitor{
		source: source,
		status: Status{IsOnline: true},
	}
}

// OnOnline registers the edge-triggered offline→online callback. Must be set
// before Start.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = fn
}

// Start subscribes to change notifications and issues an immediate
// asynchronous probe.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.unsubscribeSet(m.source.Subscribe(m.apply))

	go func() {
		state, err := m.source.Fetch(ctx)
		if err != nil {
			slog.DebugContext(ctx, "Initial connectivity probe failed", "error", err)
		}
		m.apply(state)
	}()

	slog.InfoContext(ctx, "Connectivity monitor started")
}

func (m *Monitor) unsubscribeSet(fn func()) {
	m.mu.Lock()
	stopped := m.stopped
	if !stopped {
		m.unsubscribe = fn
	}
	m.mu.Unlock()

	// Stop raced ahead of the subscription; release immediately.
	if stopped {
		fn()
	}
}

// Stop releases the underlying subscription exactly once. No state updates
// are applied after teardown.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Status returns the latest snapshot.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) apply(state State) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}

	wasOnline := m.status.IsOnline
	isOnline := state.IsConnected != nil && *state.IsConnected
	m.status = Status{
		IsOnline:            isOnline,
		IsInternetReachable: state.IsInternetReachable,
	}
	onOnline := m.onOnline
	m.mu.Unlock()

	if isOnline != wasOnline {
		slog.Info("Connectivity changed", "is_online", isOnline)
	}

	// Edge-triggered: only the offline→online transition fires the callback.
	if !wasOnline && isOnline && onOnline != nil {
		onOnline()
	}
}
