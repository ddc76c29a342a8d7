package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"homeworkbot/internal/homework"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewAbortsOnMissingCredentials(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "program.log")
	cfgPath := writeConfig(t, dir, `{
		"practicum": {"endpoint": "`+srv.URL+`"},
		"telegram": {"url": "`+srv.URL+`"},
		"logging": {"level": "debug", "console": false, "file": {"enabled": true, "path": "`+filepath.ToSlash(logPath)+`"}}
	}`)

	_, err := New(Options{
		ConfigPath: cfgPath,
		Getenv:     envMap(map[string]string{"TELEGRAM_TOKEN": "t"}),
	})
	if !homework.IsKind(err, homework.MissingConfiguration) {
		t.Fatalf("New error = %v, want MissingConfiguration", err)
	}
	if !strings.Contains(err.Error(), "PRACTICUM_TOKEN") || !strings.Contains(err.Error(), "TELEGRAM_CHAT_ID") {
		t.Fatalf("error %q should name the missing variables", err.Error())
	}
	if hits.Load() != 0 {
		t.Fatalf("network calls = %d, want 0", hits.Load())
	}

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "startup aborted") || !strings.Contains(string(b), `"level":"fatal"`) {
		t.Fatalf("log does not record the critical abort: %s", b)
	}
}

func TestRunDeliversStatusChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fetches atomic.Int64
	sent := make(chan map[string]any, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		if got := r.Header.Get("Authorization"); got != "OAuth p" {
			t.Errorf("Authorization = %q, want %q", got, "OAuth p")
		}
		_, _ = w.Write([]byte(`{"homeworks": [{"homework_name": "lab1", "status": "approved"}], "current_date": 1700000000}`))
	})
	mux.HandleFunc("/bott/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		select {
		case sent <- body:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		cancel()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `{
		"practicum": {"endpoint": "`+srv.URL+`/api/"},
		"telegram": {"url": "`+srv.URL+`", "offline": true},
		"poll": {"every": "1h", "systemd_notify": false},
		"logging": {"level": "error", "console": false, "file": {"enabled": true, "path": "`+filepath.ToSlash(filepath.Join(dir, "bot.log"))+`"}}
	}`)

	a, err := New(Options{
		ConfigPath:     cfgPath,
		ConfigRequired: true,
		Getenv: envMap(map[string]string{
			"PRACTICUM_TOKEN":  "p",
			"TELEGRAM_TOKEN":   "t",
			"TELEGRAM_CHAT_ID": "42",
		}),
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Close()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after the message was sent")
	}

	if fetches.Load() != 1 {
		t.Fatalf("fetches = %d, want 1", fetches.Load())
	}
	var body map[string]any
	select {
	case body = <-sent:
	default:
		t.Fatal("Bot API never received sendMessage")
	}
	verdict, _ := homework.Verdict(homework.StatusApproved)
	want := homework.FormatMessage("lab1", verdict)
	if body["text"] != want {
		t.Fatalf("text = %v, want %q", body["text"], want)
	}
	if body["chat_id"] != "42" {
		t.Fatalf("chat_id = %v, want 42", body["chat_id"])
	}
}

func TestNewSurvivesBotAPIOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "bot.log")
	cfgPath := writeConfig(t, dir, `{
		"practicum": {"endpoint": "`+srv.URL+`/api/"},
		"telegram": {"url": "`+srv.URL+`"},
		"poll": {"systemd_notify": false},
		"logging": {"level": "warn", "console": false, "file": {"enabled": true, "path": "`+filepath.ToSlash(logPath)+`"}}
	}`)

	a, err := New(Options{
		ConfigPath: cfgPath,
		Getenv: envMap(map[string]string{
			"PRACTICUM_TOKEN":  "p",
			"TELEGRAM_TOKEN":   "t",
			"TELEGRAM_CHAT_ID": "42",
		}),
	})
	if err != nil {
		t.Fatalf("New error = %v, want startup to tolerate a Bot API outage", err)
	}
	a.Close()

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "telegram token check failed") {
		t.Fatalf("log does not record the failed token check: %s", b)
	}
	if strings.Contains(string(b), "startup aborted") {
		t.Fatalf("startup must not abort: %s", b)
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `{
		"poll": {"every": "sometimes"},
		"logging": {"console": false, "file": {"enabled": false}}
	}`)
	_, err := New(Options{
		ConfigPath: cfgPath,
		Getenv: envMap(map[string]string{
			"PRACTICUM_TOKEN":  "p",
			"TELEGRAM_TOKEN":   "t",
			"TELEGRAM_CHAT_ID": "42",
		}),
	})
	if err == nil {
		t.Fatal("expected schedule error")
	}
}
