package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lagerstatus/internal/sweep"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramSender is the part of the bot API the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

const (
	// maxListedRows caps the per-row lines in one message.
	maxListedRows = 20

	maxSendRetries = 2
)

// Telegram posts sweep summaries to a fixed set of chats.
type Telegram struct {
	sender  TelegramSender
	chatIDs []int64
	logger  zerolog.Logger

	// retryUnit scales Telegram's retry_after hint.
	retryUnit time.Duration
}

func NewTelegram(sender TelegramSender, chatIDs []int64, logger zerolog.Logger) *Telegram {
	return &Telegram{
		sender:    sender,
		chatIDs:   chatIDs,
		logger:    logger.With().Str("component", "notify").Logger(),
		retryUnit: time.Second,
	}
}

// NewTelegramFromToken connects to the bot API with token.
func NewTelegramFromToken(token string, chatIDs []int64, logger zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return NewTelegram(bot, chatIDs, logger), nil
}

// NotifySweep sends the summary to every chat. Failures for single chats
// are collected and do not stop delivery to the rest.
func (t *Telegram) NotifySweep(ctx context.Context, res *sweep.Result) error {
	if res == nil || len(t.chatIDs) == 0 {
		return nil
	}

	text := FormatSweep(res)
	var errs []error
	for _, chatID := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if err := t.send(ctx, msg); err != nil {
			t.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send sweep summary")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// send retries flood-control rejections after the wait Telegram asks for.
func (t *Telegram) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	for attempt := 0; ; attempt++ {
		_, err := t.sender.Send(msg)
		if err == nil {
			return nil
		}

		var tgErr *tgbotapi.Error
		if attempt >= maxSendRetries || !errors.As(err, &tgErr) || tgErr.RetryAfter <= 0 {
			return err
		}

		wait := time.Duration(tgErr.RetryAfter) * t.retryUnit
		t.logger.Debug().Int64("chat_id", msg.ChatID).Dur("wait", wait).Msg("telegram flood control, retrying")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// FormatSweep renders a plain-text summary of a sweep.
func FormatSweep(res *sweep.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lagerstatus: %d utgångna reservationer borttagna", res.RemovedCount)
	if res.Failed > 0 {
		fmt.Fprintf(&b, ", %d misslyckades", res.Failed)
	}
	b.WriteString(".\n")

	listed := 0
	for _, row := range res.Rows {
		if row.State != sweep.RowCleared && row.State != sweep.RowClearFailed {
			continue
		}
		if listed == maxListedRows {
			b.WriteString("...\n")
			break
		}
		listed++

		fmt.Fprintf(&b, "%s %s (%s)", row.Cell, row.Name, row.ExpiryDate)
		if row.State == sweep.RowClearFailed {
			b.WriteString(" misslyckades")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
