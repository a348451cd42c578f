package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitorSignalsRestoreOnce(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	monitor := NewMonitor(server.URL, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx)

	// 5xx from the probe endpoint counts as offline.
	require.Never(t, func() bool { return monitor.Online() }, 50*time.Millisecond, 5*time.Millisecond)

	healthy.Store(true)
	select {
	case <-monitor.Restored():
	case <-time.After(time.Second):
		t.Fatal("no restored signal after backend recovery")
	}
	require.True(t, monitor.Online())

	// Steady-state online probes do not re-signal.
	select {
	case <-monitor.Restored():
		t.Fatal("unexpected second restored signal while staying online")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorStartsOfflineWhenBackendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	monitor := NewMonitor(server.URL, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx)

	require.Never(t, func() bool { return monitor.Online() }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestMonitorTreatsClientErrorsAsReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	monitor := NewMonitor(server.URL, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx)

	require.Eventually(t, func() bool { return monitor.Online() }, time.Second, 5*time.Millisecond)
}
