package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"homeworkbot/internal/homework"
)

// Environment variable names. The three credentials are required.
const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"

	EnvEndpoint    = "PRACTICUM_ENDPOINT"
	EnvRetryPeriod = "RETRY_PERIOD"
	EnvLogLevel    = "LOG_LEVEL"
)

const (
	DefaultPollEvery   = "10m"
	DefaultLogFilePath = "./program.log"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Poll:    PollConfig{Every: DefaultPollEvery},
		Logging: LoggingConfig{Level: "debug", Console: true, File: LoggingFile{Enabled: true, Path: DefaultLogFilePath}},
	}
}

// Load reads the config file at path (JSON, or YAML by extension) on top of
// Default and then applies environment overrides. A missing file is not an
// error unless required is set.
func Load(path string, required bool, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decodeInto(path, b, cfg); err != nil {
				return nil, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return nil, err
		}
	}
	if getenv != nil {
		cfg.ApplyEnv(getenv)
	}
	return cfg, nil
}

func decodeInto(path string, data []byte, cfg *Config) error {
	jb := data
	if isYAML(path) {
		var err error
		if jb, err = yamlToJSON(data); err != nil {
			return err
		}
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing data")
		}
		return err
	}
	return nil
}

// ApplyEnv overrides file values with non-empty environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, name string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}
	set(&c.Practicum.Token, EnvPracticumToken)
	set(&c.Telegram.Token, EnvTelegramToken)
	if v := strings.TrimSpace(getenv(EnvTelegramChatID)); v != "" {
		c.Telegram.ChatID = FlexString(v)
	}
	set(&c.Practicum.Endpoint, EnvEndpoint)
	set(&c.Poll.Every, EnvRetryPeriod)
	set(&c.Logging.Level, EnvLogLevel)
}

// Missing lists the environment names of every empty credential.
func (c *Config) Missing() []string {
	var out []string
	if strings.TrimSpace(c.Practicum.Token) == "" {
		out = append(out, EnvPracticumToken)
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		out = append(out, EnvTelegramToken)
	}
	if strings.TrimSpace(string(c.Telegram.ChatID)) == "" {
		out = append(out, EnvTelegramChatID)
	}
	return out
}

// Validate checks credentials first (MissingConfiguration) and then every
// value that needs parsing.
func (c *Config) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return &homework.Error{Kind: homework.MissingConfiguration, Missing: missing}
	}
	if _, err := c.ChatID(); err != nil {
		return err
	}
	if _, err := c.PracticumTimeout(); err != nil {
		return err
	}
	if _, err := c.DedupWindow(); err != nil {
		return err
	}
	if _, err := c.SendTimeout(); err != nil {
		return err
	}
	if c.Poll.InitialFromDate < 0 {
		return fmt.Errorf("poll.initial_from_date: must be >= 0")
	}
	if c.Telegram.RatePerSec < 0 {
		return fmt.Errorf("telegram.rate_per_sec: must be >= 0")
	}
	return nil
}

// ChatID parses the destination chat id.
func (c *Config) ChatID() (int64, error) {
	raw := strings.TrimSpace(string(c.Telegram.ChatID))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid chat id %q: %w", EnvTelegramChatID, raw, err)
	}
	return id, nil
}

func (c *Config) PracticumTimeout() (time.Duration, error) {
	return parseDurationOrDefault("practicum.timeout", c.Practicum.Timeout, 30*time.Second)
}

func (c *Config) DedupWindow() (time.Duration, error) {
	return parseDuration("notifier.dedup_window", c.Notifier.DedupWindow)
}

func (c *Config) SendTimeout() (time.Duration, error) {
	return parseDurationOrDefault("notifier.send_timeout", c.Notifier.SendTimeout, 10*time.Second)
}

// SystemdNotify reports whether sd_notify messages are enabled (default true).
func (c *Config) SystemdNotify() bool {
	return c.Poll.SystemdNotify == nil || *c.Poll.SystemdNotify
}

func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := parseDuration(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
