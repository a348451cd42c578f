package syncer

import "log"

// Notifier receives advisory run summaries for user-facing toasts. It must
// never block or fail a sync run.
type Notifier interface {
	SyncStarted(pending int)
	SyncCompleted(summary Summary)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) SyncStarted(int)       {}
func (NopNotifier) SyncCompleted(Summary) {}

// LogNotifier writes run summaries to the process log.
type LogNotifier struct {
	Logger *log.Logger
}

// NewLogNotifier builds a LogNotifier with the default process logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{Logger: log.New(log.Writer(), "[sync] ", log.LstdFlags)}
}

func (n *LogNotifier) SyncStarted(pending int) {
	n.Logger.Printf("sync started: %d pending", pending)
}

func (n *LogNotifier) SyncCompleted(summary Summary) {
	if summary.Failed > 0 || summary.Quarantined > 0 {
		n.Logger.Printf("sync finished: %d synced, %d failed (will retry), %d need manual resolution",
			summary.Succeeded, summary.Failed, summary.Quarantined)
		return
	}
	n.Logger.Printf("sync finished: %d synced", summary.Succeeded)
}
