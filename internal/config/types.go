package config

import (
	"bytes"
	"encoding/json"
)

// Config is the on-disk configuration. Environment variables override it
// (see ApplyEnv); the result is validated once and never mutated afterwards.
type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Telegram  TelegramConfig  `json:"telegram"`
	Poll      PollConfig      `json:"poll"`
	Notifier  NotifierConfig  `json:"notifier"`
	Logging   LoggingConfig   `json:"logging"`
}

type PracticumConfig struct {
	Token    string `json:"token"`
	Endpoint string `json:"endpoint,omitempty"`
	// Timeout is a Go duration string (e.g. "30s").
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChatID is kept as text so an absent value is distinguishable from 0.
	ChatID   FlexString `json:"chat_id"`
	ThreadID int        `json:"thread_id,omitempty"`
	// URL overrides the Bot API base URL.
	URL        string `json:"url,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	// Offline skips the getMe token check at startup. A failed check is
	// logged as a warning and never stops the bot.
	Offline bool `json:"offline,omitempty"`
}

// PollConfig controls cycle pacing.
//
// Every is the fixed pause between the end of one cycle and the start of the
// next. It accepts a Go duration ("10m") or HH:MM ("00:10"). Default: 10m.
//
// A cron expression ("*/10 * * * *", "@every 10m") is accepted as an opt-in
// alternative; with one, the loop sleeps until the next matching time instead
// of for a fixed interval.
type PollConfig struct {
	Every string `json:"every,omitempty"`
	// InitialFromDate seeds the cursor (unix seconds). 0 means "now".
	InitialFromDate int64 `json:"initial_from_date,omitempty"`
	// SystemdNotify sends READY/WATCHDOG/STOPPING to systemd when NOTIFY_SOCKET is set.
	SystemdNotify *bool `json:"systemd_notify,omitempty"`
}

type NotifierConfig struct {
	// DedupWindow is a Go duration string; "0s" disables dedup.
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
	// SendTimeout bounds one Bot API call, including the request body and the
	// reply. Go duration string. Default: 10s.
	SendTimeout string `json:"send_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// FlexString accepts a JSON string or number. YAML users tend to write
// chat ids unquoted.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
