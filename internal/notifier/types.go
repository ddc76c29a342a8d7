package notifier

import "time"

// Config controls delivery.
type Config struct {
	ChatID   int64
	ThreadID int

	// RatePerSec caps sends per second. 0 means 1.
	RatePerSec int

	DedupWindow     time.Duration
	DedupMaxEntries int
}

type HistoryItem struct {
	At   time.Time
	Text string
}
