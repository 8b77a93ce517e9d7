package netmon

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HTTPProber turns periodic reachability checks against the backend health
// endpoint into the Source contract: Fetch is one probe, Subscribe emits a
// State per probe interval.
type HTTPProber struct {
	url      string
	client   *http.Client
	interval time.Duration

	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func NewHTTPProber(url string, interval time.Duration) *HTTPProber {
	return &HTTPProber{
		url:      url,
		client:   &http.Client{Timeout: 5 * time.Second},
		interval: interval,
		subs:     make(map[int]chan struct{}),
	}
}

// Fetch performs a single probe. A reachable, succeeding health endpoint
// means connected; any transport error or non-2xx status means not.
func (p *HTTPProber) Fetch(ctx context.Context) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return offlineState(), err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return offlineState(), nil
	}
	resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	return State{IsConnected: boolPtr(ok), IsInternetReachable: boolPtr(ok)}, nil
}

// Subscribe starts a probe loop emitting a State every interval until the
// returned unsubscribe function is called.
func (p *HTTPProber) Subscribe(fn func(State)) func() {
	stopCh := make(chan struct{})

	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = stopCh
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				state, _ := p.Fetch(context.Background())
				fn(state)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(stopCh)
		})
	}
}

func offlineState() State {
	return State{IsConnected: boolPtr(false), IsInternetReachable: boolPtr(false)}
}

func boolPtr(b bool) *bool { return &b }
