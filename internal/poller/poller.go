package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"homeworkbot/internal/homework"
	logx "homeworkbot/pkg/logx"
)

// FailurePrefix starts every self-reported failure message.
const FailurePrefix = "system failure: "

// Fetcher returns the decoded status payload for changes since a unix timestamp.
type Fetcher interface {
	Fetch(ctx context.Context, since int64) (any, error)
}

// Notifier delivers one chat message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Lifecycle receives service state changes (systemd in production).
type Lifecycle interface {
	Ready() (bool, error)
	Watchdog() (bool, error)
	Stopping() (bool, error)
}

// Outcome is what a cycle ended with. It is used for logging and tests.
type Outcome int

const (
	OutcomeNotified Outcome = iota
	OutcomeIdle
	OutcomeFailed
	OutcomeUndelivered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotified:
		return "notified"
	case OutcomeIdle:
		return "idle"
	case OutcomeFailed:
		return "failed"
	case OutcomeUndelivered:
		return "undelivered"
	default:
		return "unknown"
	}
}

type Option func(*Poller)

func WithLogger(log logx.Logger) Option { return func(p *Poller) { p.log = log } }

// WithSchedule sets the pacing between cycles.
func WithSchedule(s cron.Schedule) Option { return func(p *Poller) { p.schedule = s } }

// WithCursor seeds the cursor. 0 keeps the default ("now").
func WithCursor(unix int64) Option {
	return func(p *Poller) {
		if unix > 0 {
			p.cursor = unix
		}
	}
}

func WithLifecycle(l Lifecycle) Option { return func(p *Poller) { p.lifecycle = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(p *Poller) { p.now = now } }

// WithSleep replaces the context-aware sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(p *Poller) { p.sleep = sleep }
}

// Poller owns the cursor. It is not safe for concurrent use; Run is the only
// intended caller of cycle.
type Poller struct {
	fetcher   Fetcher
	notifier  Notifier
	log       logx.Logger
	schedule  cron.Schedule
	lifecycle Lifecycle
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration)

	cursor int64
}

func New(f Fetcher, n Notifier, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  f,
		notifier: n,
		schedule: cron.Every(DefaultInterval),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	if p.log.IsZero() {
		p.log = logx.Nop()
	}
	if p.cursor == 0 {
		p.cursor = p.now().Unix()
	}
	return p
}

// Cursor returns the from_date the next cycle will use.
func (p *Poller) Cursor() int64 { return p.cursor }

// Run polls until ctx is cancelled. It never returns on component errors.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("polling started", logx.Int64("from_date", p.cursor))
	if p.lifecycle != nil {
		if _, err := p.lifecycle.Ready(); err != nil {
			p.log.Warn("sd_notify ready failed", logx.Err(err))
		}
		defer func() { _, _ = p.lifecycle.Stopping() }()
	}

	for ctx.Err() == nil {
		p.cycle(ctx)
	}
	p.log.Info("polling stopped", logx.Int64("from_date", p.cursor))
	return nil
}

// cycle performs one full pass, pause included.
func (p *Poller) cycle(ctx context.Context) (out Outcome) {
	log := p.log.With(logx.String("cycle_id", uuid.NewString()))
	start := p.now()

	defer func() {
		d := pauseAfter(p.schedule, p.now())
		log.Debug("cycle done", logx.String("outcome", out.String()), logx.Int64("from_date", p.cursor), logx.Duration("took", p.now().Sub(start)), logx.Duration("sleep", d))
		p.sleep(ctx, d)
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error("cycle panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			p.report(ctx, log, fmt.Errorf("panic: %v", r))
			out = OutcomeFailed
		}
	}()

	if p.lifecycle != nil {
		_, _ = p.lifecycle.Watchdog()
	}

	payload, err := p.fetcher.Fetch(ctx, p.cursor)
	if err != nil {
		p.report(ctx, log, err)
		return OutcomeFailed
	}

	log.Debug("checking response")
	resp, err := homework.CheckResponse(payload)
	if err != nil {
		p.report(ctx, log, err)
		return OutcomeFailed
	}
	if !resp.Found {
		log.Debug("no new homework statuses")
		p.cursor = resp.CurrentDate
		return OutcomeIdle
	}

	msg, err := homework.ParseStatus(resp.Homework)
	if err != nil {
		p.report(ctx, log, err)
		return OutcomeFailed
	}

	if err := p.notifier.Notify(ctx, msg); err != nil {
		// The cursor stays put so the change is reported again next cycle.
		log.Error("status message not delivered", logx.Err(err), logx.String("kind", homework.KindOf(err).String()))
		return OutcomeUndelivered
	}
	p.cursor = resp.CurrentDate
	return OutcomeNotified
}

// report sends a failure to the chat. The cursor is not touched.
func (p *Poller) report(ctx context.Context, log logx.Logger, cause error) {
	log.Error("cycle failed", logx.Err(cause), logx.String("kind", homework.KindOf(cause).String()))
	if ctx.Err() != nil && errors.Is(cause, ctx.Err()) {
		// Shutdown in progress; nothing to report.
		return
	}
	if err := p.notifier.Notify(ctx, FailurePrefix+cause.Error()); err != nil {
		log.Error("failure report not delivered", logx.Err(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
