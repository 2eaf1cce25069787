package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// TelegramConfig configures the Telegram sink.
type TelegramConfig struct {
	Token      string
	ChatID     int64
	RatePerSec int
	// Offline skips the getMe call on construction (tests, dry runs).
	Offline bool
}

// Telegram sends notices to one chat through a bot.
type Telegram struct {
	bot     *tele.Bot
	chat    tele.ChatID
	limiter *rate.Limiter
}

// NewTelegram builds the sink. It fails when token or chat id is missing.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
		Poller:  &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{
		bot:     b,
		chat:    tele.ChatID(cfg.ChatID),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (t *Telegram) Permission() Permission {
	if t == nil || t.bot == nil {
		return PermissionDefault
	}
	return PermissionGranted
}

func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	text := n.Title
	if n.Body != "" {
		text += "\n" + n.Body
	}
	if _, err := t.bot.Send(t.chat, text); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
