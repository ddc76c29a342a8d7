package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

// Config configures the Telegram adapter.
type Config struct {
	Token string
	// URL overrides the Bot API base URL (e.g. a local bot API server). Empty means Telegram.
	URL string
	// Timeout bounds one API call. 0 means 10s.
	Timeout time.Duration
	// Offline skips the getMe token check at construction. The check only
	// warns: the bot is always built without a network round trip.
	Offline bool
}

// Adapter is a send-only Telegram client: the bot never reads updates.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimSpace(cfg.URL),
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
		OnError: func(err error, _ tele.Context) {
			log.Error("telegram error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	if !cfg.Offline {
		if _, err := b.Raw("getMe", nil); err != nil {
			log.Warn("telegram token check failed; sends will report delivery errors", logx.Err(err))
		}
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}
	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}

	msg, err := a.bot.Send(tele.ChatID(to.ChatID), text, sendOpt)
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}
