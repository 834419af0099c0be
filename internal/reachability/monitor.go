// Package reachability reports online/offline transitions of the network
// path to the backend. The engine consumes the Monitor interface; the probe
// implementation polls an HTTP endpoint and debounces flapping.
package reachability

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Monitor is the connectivity signal the engine consumes.
type Monitor interface {
	// IsOnline reports the current connectivity state.
	IsOnline() bool

	// OnChange registers a callback invoked on every state transition.
	OnChange(fn func(online bool))
}

// Probe defaults.
const (
	DefaultProbeInterval = 15 * time.Second
	DefaultProbeTimeout  = 5 * time.Second

	// debounceThreshold is how many consecutive contrary observations
	// are required before the state flips. Absorbs flapping from a
	// noisy network path.
	debounceThreshold = 2
)

// ProbeMonitor implements Monitor by periodically issuing HEAD requests
// against a probe URL.
type ProbeMonitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu        sync.Mutex
	online    bool
	streak    int // consecutive observations contradicting the current state
	callbacks []func(online bool)

	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

var _ Monitor = (*ProbeMonitor)(nil)

// NewProbeMonitor creates a monitor polling probeURL. The monitor starts
// optimistic (online); the first failed probes flip it. interval <= 0
// selects DefaultProbeInterval.
func NewProbeMonitor(probeURL string, interval time.Duration, logger *slog.Logger) *ProbeMonitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &ProbeMonitor{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: DefaultProbeTimeout},
		logger:   logger,
		online:   true,
	}
}

// IsOnline reports the current connectivity state.
func (m *ProbeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a transition callback. Callbacks run on the probe
// goroutine and should hand off long work.
func (m *ProbeMonitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Start launches the probe loop.
func (m *ProbeMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stop = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.observe(m.probe(ctx))
		for {
			select {
			case <-ticker.C:
				m.observe(m.probe(ctx))
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the probe loop.
func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
}

// probe checks the probe URL once.
func (m *ProbeMonitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()

	// Any HTTP answer proves the path is up, even an error status.
	return true
}

// observe feeds one probe result into the debounced state machine. The
// state flips only after debounceThreshold consecutive contrary
// observations; transitions invoke the registered callbacks.
func (m *ProbeMonitor) observe(online bool) {
	m.mu.Lock()

	if online == m.online {
		m.streak = 0
		m.mu.Unlock()
		return
	}

	m.streak++
	if m.streak < debounceThreshold {
		m.mu.Unlock()
		return
	}

	m.online = online
	m.streak = 0
	callbacks := append(([]func(bool))(nil), m.callbacks...)
	m.mu.Unlock()

	m.logger.Info("reachability changed", "online", online)
	for _, fn := range callbacks {
		fn(online)
	}
}
