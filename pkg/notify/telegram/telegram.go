package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"wabot/pkg/bus"
	"wabot/pkg/config"
	"wabot/pkg/logger"
	"wabot/pkg/notify"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const (
	notifierName    = "telegram"
	qrAttempts      = 5
	qrRetryInterval = 2 * time.Second

	// The web client rotates its login QR roughly every 20 seconds.
	qrRefreshInterval = 10 * time.Second
)

type botAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
}

// Notifier sends login QR codes and activity notices to Telegram chats.
type Notifier struct {
	bot            botAPI
	chatIDs        []int64
	forwardReplies bool
	qr             notify.QRSource
	qrAttempts     int
	qrRetry        time.Duration
	qrRefresh      time.Duration
	log            *slog.Logger

	// awaitingLogin is set between the unauthenticated and authenticated
	// transitions; lastQR is the image most recently sent while it holds.
	awaitingLogin bool
	lastQR        []byte
}

// New validates the Telegram configuration and builds a notifier.
func New(cfg config.TelegramConfig, qr notify.QRSource, log *slog.Logger) (*Notifier, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("notify.telegram.token is required")
	}

	chatIDs, err := parseChatIDs(cfg.ChatIDs)
	if err != nil {
		return nil, err
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return newNotifier(bot, chatIDs, cfg.ForwardReplies, qr, log), nil
}

func newNotifier(bot botAPI, chatIDs []int64, forwardReplies bool, qr notify.QRSource, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		bot:            bot,
		chatIDs:        chatIDs,
		forwardReplies: forwardReplies,
		qr:             qr,
		qrAttempts:     qrAttempts,
		qrRetry:        qrRetryInterval,
		qrRefresh:      qrRefreshInterval,
		log:            log.With("component", "notify.telegram"),
	}
}

func (n *Notifier) Name() string {
	return notifierName
}

// Run handles events until ctx is done or the event stream closes. While
// the session is logged out it resends the QR whenever the page rotates it.
func (n *Notifier) Run(ctx context.Context, events <-chan bus.Event) error {
	n.log.Info("Telegram notifier started", "chats", len(n.chatIDs))

	ticker := time.NewTicker(n.qrRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			n.handle(ctx, event)
		case <-ticker.C:
			n.refreshQR(ctx)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, event bus.Event) {
	switch event.Type {
	case bus.EventAuthChanged:
		switch event.State {
		case "unauthenticated":
			n.awaitingLogin = true
			n.sendQR(ctx)
		case "authenticated":
			n.awaitingLogin = false
			n.lastQR = nil
			n.broadcast(ctx, "✅ Logged in. Automated replies are active.")
		}
	case bus.EventSessionRestarted:
		n.broadcast(ctx, "♻️ Browser restarted after a driver failure.")
	case bus.EventReplySent:
		if n.forwardReplies {
			n.broadcast(ctx, fmt.Sprintf("💬 %s (%s): %s\n↩️ %s",
				event.Conversation, event.Sender, logger.Preview(event.Body), logger.Preview(event.Reply)))
		}
	case bus.EventReplyFailed:
		if n.forwardReplies {
			n.broadcast(ctx, fmt.Sprintf("⚠️ Reply to %s not delivered: %s", event.Conversation, event.Error))
		}
	}
}

// sendQR waits for the QR canvas to render, then sends it as a photo.
func (n *Notifier) sendQR(ctx context.Context) {
	if n.qr == nil {
		n.broadcast(ctx, "🔑 Login required. Scan the QR code from the status page.")
		return
	}

	for attempt := 1; attempt <= n.qrAttempts; attempt++ {
		data, ok, err := n.qr.QRImage(ctx)
		if err != nil {
			n.log.Warn("QR lookup failed", "attempt", attempt, "error", err)
		}
		if ok {
			n.sendPhoto(ctx, data, "🔑 Login required. Scan this QR code with the phone app.")
			n.lastQR = data
			return
		}

		if attempt == n.qrAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(n.qrRetry):
		}
	}

	n.broadcast(ctx, "🔑 Login required, but the QR code is not available yet.")
}

// refreshQR sends the current QR again if it differs from the last one sent.
func (n *Notifier) refreshQR(ctx context.Context) {
	if !n.awaitingLogin || n.qr == nil {
		return
	}

	data, ok, err := n.qr.QRImage(ctx)
	if err != nil {
		n.log.Debug("QR refresh lookup failed", "error", err)
		return
	}
	if !ok || bytes.Equal(data, n.lastQR) {
		return
	}

	n.sendPhoto(ctx, data, "🔄 The login QR code changed. Scan this one instead.")
	n.lastQR = data
}

func (n *Notifier) broadcast(ctx context.Context, text string) {
	for _, chatID := range n.chatIDs {
		if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
			n.log.Error("Failed to send telegram message", "chat_id", chatID, "error", err)
			continue
		}
		n.log.Debug("Sent telegram message", "chat_id", chatID, "content", logger.Preview(text))
	}
}

func (n *Notifier) sendPhoto(ctx context.Context, png []byte, caption string) {
	for _, chatID := range n.chatIDs {
		params := tu.Photo(tu.ID(chatID), tu.File(tu.NameReader(bytes.NewReader(png), "qr.png")))
		params.Caption = caption
		if _, err := n.bot.SendPhoto(ctx, params); err != nil {
			n.log.Error("Failed to send telegram photo", "chat_id", chatID, "error", err)
			continue
		}
		n.log.Info("Sent login QR", "chat_id", chatID, "bytes", len(png))
	}
}

// parseChatIDs normalizes configured chat ids, dropping blanks and duplicates.
func parseChatIDs(values []string) ([]int64, error) {
	seen := make(map[int64]struct{}, len(values))
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}

		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram chat id %q: %w", trimmed, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, errors.New("notify.telegram.chat_ids must contain at least one chat id")
	}
	return ids, nil
}
