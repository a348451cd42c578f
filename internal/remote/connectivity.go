package remote

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

// Monitor probes the backend health endpoint and signals offline-to-online
// transitions. It satisfies syncer.Connectivity.
type Monitor struct {
	probeURL string
	interval time.Duration
	http     *http.Client
	logger   *log.Logger

	online   atomic.Bool
	restored chan struct{}
}

// MonitorOption configures optional Monitor behaviour.
type MonitorOption func(*Monitor)

// WithProbeClient overrides the HTTP client used for probes.
func WithProbeClient(hc *http.Client) MonitorOption {
	return func(m *Monitor) {
		m.http = hc
	}
}

// WithMonitorLogger overrides the monitor's logger.
func WithMonitorLogger(logger *log.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// NewMonitor constructs a Monitor that probes probeURL every interval.
func NewMonitor(probeURL string, interval time.Duration, opts ...MonitorOption) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	m := &Monitor{
		probeURL: probeURL,
		interval: interval,
		http:     &http.Client{Timeout: 3 * time.Second},
		logger:   log.New(log.Writer(), "[connectivity] ", log.LstdFlags),
		restored: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Online reports the last observed reachability.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Restored delivers one signal per offline-to-online transition. The channel
// holds a single pending signal; bursts collapse.
func (m *Monitor) Restored() <-chan struct{} {
	return m.restored
}

// Start runs the probe loop until the context is cancelled. It should be
// called in a goroutine. The first probe fires immediately so a device that
// starts online syncs without waiting a full interval.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	reachable := m.check(ctx)
	wasOnline := m.online.Swap(reachable)
	if reachable && !wasOnline {
		m.logger.Printf("connectivity restored")
		select {
		case m.restored <- struct{}{}:
		default:
		}
	}
	if !reachable && wasOnline {
		m.logger.Printf("connectivity lost")
	}
}

func (m *Monitor) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
