// Package notify sends outbound Telegram messages: booking outcomes and the
// optional log sink. It never polls for updates; the daemon has no inbound
// command surface.
package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "github.com/saar120/arbox-automation-v2/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64
}

type Service struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{bot: b, chatID: cfg.ChatID, log: log.With(logx.String("component", "notify"))}, nil
}

// Send delivers one text message to the configured chat. It satisfies
// logx.Sender, so the log service can use the notifier as a sink.
func (s *Service) Send(ctx context.Context, text string) error {
	if s == nil || s.bot == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(tele.ChatID(s.chatID), text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		s.log.Warn("telegram send failed", logx.Err(err))
	}
	return err
}
