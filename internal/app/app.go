// Package app wires configuration, logging and the polling loop together.
package app

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"homeworkbot/internal/config"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
	telegram "homeworkbot/internal/transport/telegram/adapter"
	logx "homeworkbot/pkg/logx"
	"homeworkbot/pkg/systemd"
)

type Options struct {
	ConfigPath     string
	ConfigRequired bool
	// EnvPath is a dotenv file loaded before the environment is read. Missing is fine.
	EnvPath string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

type App struct {
	cfg  *config.Config
	log  logx.Logger
	logs *logx.Service

	client *practicum.Client
	notif  *notifier.Service
	poll   *poller.Poller
}

// New builds the bot. Credentials are checked before anything touches the
// network; a MissingConfiguration error means the loop must not start.
func New(opts Options) (*App, error) {
	bootLog := logx.NewConsole("INFO").Named("app")

	if err := loadDotenv(opts.EnvPath); err != nil {
		bootLog.Warn("dotenv load failed", logx.String("path", opts.EnvPath), logx.Err(err))
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg, err := config.Load(opts.ConfigPath, opts.ConfigRequired, getenv)
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log := root.Named("app")
	log.Debug("starting homework bot")

	a, err := build(cfg, root)
	if err != nil {
		var fields []logx.Field
		if missing := cfg.Missing(); len(missing) > 0 {
			fields = append(fields, logx.String("missing", strings.Join(missing, ",")))
		}
		log.Critical("startup aborted", append(fields, logx.Err(err))...)
		_ = logSvc.Close()
		return nil, err
	}
	a.log = log
	a.logs = logSvc
	return a, nil
}

func build(cfg *config.Config, root logx.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chatID, _ := cfg.ChatID()
	fetchTimeout, _ := cfg.PracticumTimeout()
	dedupWindow, _ := cfg.DedupWindow()
	sendTimeout, _ := cfg.SendTimeout()

	sched, err := poller.ParseSchedule(cfg.Poll.Every)
	if err != nil {
		return nil, err
	}

	ad, err := telegram.New(telegram.Config{
		Token:   cfg.Telegram.Token,
		URL:     cfg.Telegram.URL,
		Timeout: sendTimeout,
		Offline: cfg.Telegram.Offline,
	}, root.Named("telegram"))
	if err != nil {
		return nil, err
	}

	client := practicum.New(practicum.Config{
		Endpoint: cfg.Practicum.Endpoint,
		Token:    cfg.Practicum.Token,
		Timeout:  fetchTimeout,
	}, root.Named("practicum"))

	notif := notifier.New(notifier.Config{
		ChatID:          chatID,
		ThreadID:        cfg.Telegram.ThreadID,
		RatePerSec:      cfg.Telegram.RatePerSec,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: cfg.Notifier.DedupMaxEntries,
	}, ad, root.Named("notifier"))

	sd := systemd.New(cfg.SystemdNotify())
	if wd := systemd.WatchdogInterval(); wd > 0 {
		now := time.Now()
		if pause := sched.Next(now).Sub(now); wd <= pause {
			root.Named("app").Warn("systemd watchdog shorter than poll interval; the unit will be restarted",
				logx.Duration("watchdog", wd), logx.Duration("interval", pause))
		}
	}

	p := poller.New(client, notif,
		poller.WithLogger(root.Named("poller")),
		poller.WithSchedule(sched),
		poller.WithCursor(cfg.Poll.InitialFromDate),
		poller.WithLifecycle(sd),
	)

	return &App{cfg: cfg, client: client, notif: notif, poll: p}, nil
}

// Run blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.poll.Run(ctx)
}

func (a *App) Close() error {
	if a.client != nil {
		a.client.Close()
	}
	a.log.Debug("bot stopped")
	if a.logs != nil {
		return a.logs.Close()
	}
	return nil
}

func loadDotenv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
