package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"homeworkbot/internal/homework"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"), false, envMap(nil))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Poll.Every != DefaultPollEvery {
		t.Fatalf("Poll.Every = %q, want %q", cfg.Poll.Every, DefaultPollEvery)
	}
	if !cfg.Logging.File.Enabled || cfg.Logging.File.Path != DefaultLogFilePath {
		t.Fatalf("Logging.File = %+v", cfg.Logging.File)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.json"), true, envMap(nil)); err == nil {
		t.Fatal("expected error for required missing file")
	}
}

func TestLoadJSONAndEnvOverride(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{
		"practicum": {"token": "file-token", "timeout": "5s"},
		"telegram": {"token": "tg", "chat_id": "100"},
		"poll": {"every": "1m"},
		"logging": {"level": "info"}
	}`)
	cfg, err := Load(path, true, envMap(map[string]string{
		EnvPracticumToken: "env-token",
		EnvRetryPeriod:    "*/5 * * * *",
	}))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Practicum.Token != "env-token" {
		t.Fatalf("Practicum.Token = %q, want env override", cfg.Practicum.Token)
	}
	if cfg.Telegram.Token != "tg" {
		t.Fatalf("Telegram.Token = %q", cfg.Telegram.Token)
	}
	if cfg.Poll.Every != "*/5 * * * *" {
		t.Fatalf("Poll.Every = %q", cfg.Poll.Every)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.File.Enabled {
		t.Fatalf("Logging = %+v, want level override and default file sink", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if d, _ := cfg.PracticumTimeout(); d != 5*time.Second {
		t.Fatalf("PracticumTimeout = %v", d)
	}
	if id, _ := cfg.ChatID(); id != 100 {
		t.Fatalf("ChatID = %d", id)
	}
}

func TestLoadYAMLNumericChatID(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
practicum:
  token: p
telegram:
  token: t
  chat_id: -1001234567890
notifier:
  dedup_window: 1h
`)
	cfg, err := Load(path, true, envMap(nil))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if id, _ := cfg.ChatID(); id != -1001234567890 {
		t.Fatalf("ChatID = %d", id)
	}
	if d, _ := cfg.DedupWindow(); d != time.Hour {
		t.Fatalf("DedupWindow = %v", d)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"practicum": {"tokn": "typo"}}`)
	if _, err := Load(path, true, envMap(nil)); err == nil {
		t.Fatal("expected error for unknown field")
	}
	path = writeFile(t, "trailing.json", `{} {}`)
	if _, err := Load(path, true, envMap(nil)); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		env     map[string]string
		missing []string
	}{
		{name: "all missing", env: nil, missing: []string{EnvPracticumToken, EnvTelegramToken, EnvTelegramChatID}},
		{name: "practicum missing", env: map[string]string{EnvTelegramToken: "t", EnvTelegramChatID: "1"}, missing: []string{EnvPracticumToken}},
		{name: "chat id blank", env: map[string]string{EnvPracticumToken: "p", EnvTelegramToken: "t", EnvTelegramChatID: "  "}, missing: []string{EnvTelegramChatID}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Load("", false, envMap(tt.env))
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			err = cfg.Validate()
			var he *homework.Error
			if !errors.As(err, &he) || he.Kind != homework.MissingConfiguration {
				t.Fatalf("Validate error = %v, want MissingConfiguration", err)
			}
			if !reflect.DeepEqual(he.Missing, tt.missing) {
				t.Fatalf("Missing = %v, want %v", he.Missing, tt.missing)
			}
			for _, name := range tt.missing {
				if !strings.Contains(err.Error(), name) {
					t.Fatalf("message %q does not name %s", err.Error(), name)
				}
			}
		})
	}
}

func TestValidateBadValues(t *testing.T) {
	t.Parallel()
	base := map[string]string{EnvPracticumToken: "p", EnvTelegramToken: "t", EnvTelegramChatID: "1"}

	cfg, _ := Load("", false, envMap(map[string]string{EnvPracticumToken: "p", EnvTelegramToken: "t", EnvTelegramChatID: "@channel"}))
	if err := cfg.Validate(); err == nil || homework.IsKind(err, homework.MissingConfiguration) {
		t.Fatalf("Validate error = %v, want chat id parse error", err)
	}

	cfg, _ = Load("", false, envMap(base))
	cfg.Notifier.DedupWindow = "soon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid duration error")
	}

	cfg, _ = Load("", false, envMap(base))
	cfg.Poll.InitialFromDate = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected initial_from_date error")
	}
}

func TestSystemdNotifyDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if !cfg.SystemdNotify() {
		t.Fatal("SystemdNotify should default to true")
	}
	off := false
	cfg.Poll.SystemdNotify = &off
	if cfg.SystemdNotify() {
		t.Fatal("SystemdNotify should honor explicit false")
	}
}
