package notifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"homeworkbot/internal/homework"
	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

const historySize = 50

// Service sends text to the configured chat.
//
// It is safe for concurrent use, though the bot only calls it from one goroutine.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender

	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time

	// In-memory dedup cache: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 200
	}
	return &Service{
		log:    log,
		sender: sender,
		cfg:    cfg,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		now:     time.Now,
		dedup:   map[string]time.Time{},
	}
}

// Notify delivers text. Failures are returned as a DeliveryFailure error
// carrying the cause and the text.
func (s *Service) Notify(ctx context.Context, text string) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	to := kit.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID}
	s.log.Debug("sending telegram message", logx.Int64("chat_id", to.ChatID))

	key := dedupKey(to, text)
	if cfg.DedupWindow > 0 && !s.dedupAllow(key, cfg.DedupWindow, cfg.DedupMaxEntries) {
		s.log.Debug("message suppressed (duplicate)", logx.String("key", key), logx.Duration("window", cfg.DedupWindow))
		return nil
	}

	if s.sender == nil {
		return s.deliveryFailed(key, text, fmt.Errorf("no sender configured"))
	}
	if err := lim.Wait(ctx); err != nil {
		return s.deliveryFailed(key, text, err)
	}

	ref, err := s.sender.SendText(ctx, to, text, &kit.SendOptions{DisablePreview: true})
	if err != nil {
		return s.deliveryFailed(key, text, err)
	}

	s.appendHistory(text)
	s.log.Info("message sent", logx.Int64("chat_id", ref.ChatID), logx.Int("message_id", ref.MessageID))
	return nil
}

// Snapshot returns the recently delivered messages, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) deliveryFailed(key, text string, err error) error {
	// A failed send must not block the next attempt of the same text.
	s.dmu.Lock()
	delete(s.dedup, key)
	s.dmu.Unlock()
	return &homework.Error{Kind: homework.DeliveryFailure, Text: text, Err: err}
}

func (s *Service) appendHistory(text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: s.now(), Text: text})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()
}

func dedupKey(to kit.ChatTarget, text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fmt.Sprintf("%d:%d|", to.ChatID, to.ThreadID)))
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) dedupAllow(key string, window time.Duration, max int) bool {
	now := s.now()

	s.dmu.Lock()
	defer s.dmu.Unlock()

	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(window)

	// Prune expired and cap.
	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	for len(s.dedup) > max {
		var (
			minKey string
			minT   time.Time
			set    bool
		)
		for k, t := range s.dedup {
			if !set || t.Before(minT) {
				minKey, minT, set = k, t, true
			}
		}
		if !set {
			break
		}
		delete(s.dedup, minKey)
	}
	return true
}
