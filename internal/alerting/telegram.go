package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "notifyd/pkg/logx"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig configures the operator alert channel.
type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
	// Offline skips the token check against the Telegram API (tests).
	Offline bool
}

// TelegramReporter posts compact failure alerts to an operator chat.
// The bot is send-only; no poller is attached.
type TelegramReporter struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*TelegramReporter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramReporter{bot: b, chatID: cfg.ChatID, log: log}, nil
}

func (r *TelegramReporter) Submit(ctx context.Context, rep Report) {
	msg := r.format(rep)
	if _, err := r.bot.Send(&tele.Chat{ID: r.chatID}, msg); err != nil {
		r.log.Warn("telegram alert send failed", logx.Err(err))
	}
}

func (r *TelegramReporter) format(rep Report) string {
	var b strings.Builder
	b.WriteString("notifyd handler failure")
	if rep.Severity != "" {
		b.WriteString(" [")
		b.WriteString(string(rep.Severity))
		b.WriteString("]")
	}
	b.WriteString("\n")
	if rep.Err != nil {
		b.WriteString(rep.Err.Error())
		b.WriteString("\n")
	}
	if len(rep.Tags) > 0 {
		b.WriteString("tags: ")
		b.WriteString(strings.Join(rep.Tags, ", "))
		b.WriteString("\n")
	}
	if rep.Payload != nil {
		if raw, err := json.Marshal(rep.Payload); err == nil {
			payload := string(raw)
			// Telegram messages are capped; keep the payload short.
			if len(payload) > 1500 {
				payload = payload[:1500] + "…"
			}
			b.WriteString(payload)
		}
	}
	b.WriteString("\n")
	b.WriteString(time.Now().UTC().Format(time.RFC3339))
	return b.String()
}
