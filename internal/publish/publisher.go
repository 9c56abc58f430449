package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsflow/internal/config"
	"newsflow/internal/logging"
	"newsflow/internal/notifications"
	"newsflow/internal/queue"
	"newsflow/internal/services"
	"newsflow/internal/services/telegram"
	"newsflow/internal/stage"
)

const stageName = "Published"

// Sender is the subset of the Telegram client the publisher needs.
type Sender interface {
	SendHTML(ctx context.Context, chatID, text string) (*telegram.Message, error)
	GetMe(ctx context.Context) error
}

// Receipt is the Published artifact.
type Receipt struct {
	ItemID      string    `json:"item_id"`
	ChatID      string    `json:"chat_id"`
	MessageID   int64     `json:"message_id"`
	PublishedAt time.Time `json:"published_at"`
	Truncated   bool      `json:"truncated,omitempty"`
}

// Publisher posts translated articles to a Telegram chat.
type Publisher struct {
	sender   Sender
	chatID   string
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithNotifier publishes EventItemPublished after each post.
func WithNotifier(n notifications.Service) Option {
	return func(p *Publisher) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the receipt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a Publisher that sends to chatID.
func New(sender Sender, chatID string, opts ...Option) *Publisher {
	p := &Publisher{
		sender:   sender,
		chatID:   strings.TrimSpace(chatID),
		notifier: notifications.NewNoop(),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "publisher")
	return p
}

// NewFromConfig wires a Telegram client from the telegram config section.
func NewFromConfig(cfg config.Telegram, opts ...Option) *Publisher {
	client := telegram.NewClient(telegram.Config{
		BotToken:       cfg.BotToken,
		BaseURL:        cfg.APIBaseURL,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})
	return New(client, cfg.ChatID, opts...)
}

// BuildMessage renders the Telegram text for item from its translated document.
func BuildMessage(item *queue.Item, document []byte) (string, bool, error) {
	blocks, err := FormatArticle(document)
	if err != nil {
		return "", false, err
	}
	if len(blocks) == 0 {
		return "", false, fmt.Errorf("article has no text")
	}
	text, truncated := ComposeMessage(blocks, Footer(item.PublishedAt, item.SourceURL), MessageLimit)
	return text, truncated, nil
}

// Execute sends prior, the translated document, and returns a JSON receipt.
func (p *Publisher) Execute(ctx context.Context, item *queue.Item, prior []byte) ([]byte, error) {
	text, truncated, err := BuildMessage(item, prior)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "format", "cannot render telegram message", err)
	}
	logger := logging.WithContext(ctx, p.logger)
	if truncated {
		logger.Info("message truncated to fit telegram limit",
			logging.Int("limit_utf16", MessageLimit),
			logging.Int("length_utf16", UTF16Len(PlainText(text))),
		)
	}

	msg, err := p.sender.SendHTML(ctx, p.chatID, text)
	if err != nil {
		return nil, err
	}
	receipt := Receipt{
		ItemID:      item.ID,
		ChatID:      p.chatID,
		MessageID:   msg.MessageID,
		PublishedAt: p.now().UTC(),
		Truncated:   truncated,
	}
	payload, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	logger.Info("message sent",
		logging.String(logging.FieldEventType, "item_published"),
		logging.Int64("message_id", msg.MessageID),
	)
	if err := p.notifier.Publish(ctx, notifications.EventItemPublished, notifications.Payload{
		"title":     item.Title,
		"sourceURL": item.SourceURL,
		"itemID":    item.ID,
	}); err != nil {
		logging.WarnWithContext(logger, "publish notification failed", "notification_failed",
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "message was still posted"),
			logging.Error(err),
		)
	}
	return append(payload, '\n'), nil
}

// HealthCheck verifies the bot token with getMe.
func (p *Publisher) HealthCheck(ctx context.Context) stage.Health {
	if p.chatID == "" {
		return stage.Unhealthy("publisher", "telegram chat id not configured")
	}
	if err := p.sender.GetMe(ctx); err != nil {
		return stage.Unhealthy("publisher", err.Error())
	}
	return stage.Healthy("publisher")
}
