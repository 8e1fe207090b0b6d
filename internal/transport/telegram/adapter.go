// Package telegram implements transport.Sender on top of the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
)

type Config struct {
	Token   string
	Timeout time.Duration
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

// New creates a send-only Telegram adapter. No poller is attached; promobot
// never consumes updates.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Adapter{bot: b, log: log}, nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sendOpts := &tele.SendOptions{ThreadID: to.ThreadID}
	if opt != nil && opt.DisablePreview {
		sendOpts.DisableWebPagePreview = true
	}
	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOpts)
	return err
}
