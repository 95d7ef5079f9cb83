// Package telegram delivers payloads through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"devhelper/internal/domain"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API endpoint.
	APIURL     string
	RatePerSec int
	Timeout    time.Duration
}

type Gateway struct {
	bot     *tele.Bot
	limiter *rate.Limiter
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 25
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: true,
		Client:  &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Gateway{
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		logger:  logger.With("gateway", "telegram"),
	}, nil
}

// Resolve checks that the bot can still see the chat.
func (g *Gateway) Resolve(ctx context.Context, dest domain.Destination) error {
	chatID, err := parseChatID(dest)
	if err != nil {
		return err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := g.bot.ChatByID(chatID); err != nil {
		if isUnreachable(err) {
			return fmt.Errorf("%w: chat %d: %w", domain.ErrDestinationUnreachable, chatID, err)
		}
		return fmt.Errorf("get chat %d: %w", chatID, err)
	}
	return nil
}

// Deliver edits the referenced message when the payload carries an edit,
// then sends the text as a new message. A failed edit does not stop the send.
func (g *Gateway) Deliver(ctx context.Context, dest domain.Destination, payload domain.Payload) error {
	chatID, err := parseChatID(dest)
	if err != nil {
		return err
	}
	chat := &tele.Chat{ID: chatID}
	opts := &tele.SendOptions{DisableWebPagePreview: true}

	if payload.Edit != "" && dest.MessageID != "" {
		if err := g.edit(ctx, chat, dest.MessageID, payload.Edit, opts); err != nil {
			g.logger.Warn("failed to edit message",
				"chat_id", chatID,
				"message_id", dest.MessageID,
				"error", err,
			)
		}
	}

	if payload.Text == "" {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := g.bot.Send(chat, payload.Text, opts); err != nil {
		if isUnreachable(err) {
			return fmt.Errorf("%w: chat %d: %w", domain.ErrDestinationUnreachable, chatID, err)
		}
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (g *Gateway) edit(ctx context.Context, chat *tele.Chat, messageID, text string, opts *tele.SendOptions) error {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id %q", messageID)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = g.bot.Edit(&tele.Message{ID: id, Chat: chat}, text, opts)
	if errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	return err
}

func parseChatID(dest domain.Destination) (int64, error) {
	id, err := strconv.ParseInt(dest.ChannelID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid chat id %q", domain.ErrDestinationUnreachable, dest.ChannelID)
	}
	return id, nil
}

func isUnreachable(err error) bool {
	return errors.Is(err, tele.ErrChatNotFound) ||
		errors.Is(err, tele.ErrBlockedByUser) ||
		errors.Is(err, tele.ErrKickedFromGroup) ||
		errors.Is(err, tele.ErrKickedFromSuperGroup) ||
		errors.Is(err, tele.ErrUserIsDeactivated)
}
