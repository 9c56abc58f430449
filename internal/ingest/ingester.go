package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"

	"newsflow/internal/config"
	"newsflow/internal/logging"
	"newsflow/internal/notifications"
	"newsflow/internal/queue"
	"newsflow/internal/services"
)

const maxFeedBytes = 5 << 20

// Result summarizes one scrape.
type Result struct {
	Found    int
	Inserted int
	Skipped  int
}

// Ingester queues items found on the feed page.
type Ingester struct {
	feedURL   string
	selectors Selectors
	userAgent string
	items     queue.Repository
	client    *http.Client
	notifier  notifications.Service
	logger    *slog.Logger
	now       func() time.Time
	attempts  uint64
	baseDelay time.Duration
}

// Option customizes an Ingester.
type Option func(*Ingester)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Ingester) {
		if client != nil {
			i.client = client
		}
	}
}

// WithNotifier reports newly queued items.
func WithNotifier(n notifications.Service) Option {
	return func(i *Ingester) {
		if n != nil {
			i.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithClock overrides the fallback publication time source.
func WithClock(now func() time.Time) Option {
	return func(i *Ingester) {
		if now != nil {
			i.now = now
		}
	}
}

// WithRetryDelay overrides the initial backoff between fetch attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(i *Ingester) {
		i.baseDelay = d
	}
}

// New builds an Ingester for the feed described by cfg.Ingest.
func New(cfg *config.Config, items queue.Repository, opts ...Option) *Ingester {
	ing := &Ingester{
		feedURL: strings.TrimSpace(cfg.Ingest.FeedURL),
		selectors: Selectors{
			Item: cfg.Ingest.ItemSelector,
			Link: cfg.Ingest.LinkSelector,
			Date: cfg.Ingest.DateSelector,
		},
		userAgent: cfg.Fetch.UserAgent,
		items:     items,
		client:    &http.Client{Timeout: 60 * time.Second},
		notifier:  notifications.NewNoop(),
		logger:    logging.NewNop(),
		now:       time.Now,
		attempts:  uint64(max(cfg.Fetch.RetryAttempts, 0)),
		baseDelay: time.Second,
	}
	for _, opt := range opts {
		opt(ing)
	}
	ing.logger = logging.NewComponentLogger(ing.logger, "ingest")
	return ing
}

// FeedURL returns the scraped page.
func (i *Ingester) FeedURL() string {
	return i.feedURL
}

// Run scrapes the feed once and inserts unseen items.
func (i *Ingester) Run(ctx context.Context) (Result, error) {
	var result Result
	if i.feedURL == "" {
		return result, services.Wrap(services.ErrConfiguration, "", "ingest", "ingest.feed_url is not set (or set FEED1_URL)", nil)
	}
	page, err := i.fetch(ctx)
	if err != nil {
		return result, err
	}
	found, err := Parse(bytes.NewReader(page), i.feedURL, i.selectors, i.now().UTC())
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "", "ingest", "parse feed page", err)
	}
	result.Found = len(found)

	logger := logging.WithContext(ctx, i.logger)
	for _, item := range found {
		created, err := i.items.Insert(ctx, item)
		if err != nil {
			return result, err
		}
		if !created {
			result.Skipped++
			continue
		}
		result.Inserted++
		logger.Debug("item queued",
			logging.String(logging.FieldItemID, item.ID),
			logging.String("title", item.Title),
			logging.String("source_url", item.SourceURL),
		)
	}
	logger.Info("feed scraped",
		logging.String(logging.FieldEventType, "ingest_completed"),
		logging.String("feed", i.feedURL),
		logging.Int("found", result.Found),
		logging.Int("inserted", result.Inserted),
		logging.Int("skipped", result.Skipped),
	)
	if result.Inserted > 0 {
		if err := i.notifier.Publish(ctx, notifications.EventItemsIngested, notifications.Payload{
			"count": result.Inserted,
			"feed":  i.feedURL,
		}); err != nil {
			logging.WarnWithContext(logger, "ingest notification failed", "notification_failed",
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "items were still queued"),
				logging.Error(err),
			)
		}
	}
	return result, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("feed page: http %d", e.code)
}

func (i *Ingester) fetch(ctx context.Context) ([]byte, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = i.baseDelay
	if expo.InitialInterval <= 0 {
		expo.InitialInterval = time.Millisecond
	}
	expo.MaxElapsedTime = 0
	expo.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, i.attempts), ctx)

	var page []byte
	err := backoff.Retry(func() error {
		body, err := i.fetchOnce(ctx)
		if err != nil {
			var statusErr *statusError
			if errors.As(err, &statusErr) && statusErr.code < http.StatusInternalServerError && statusErr.code != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		page = body
		return nil
	}, policy)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "", "ingest", "fetch "+i.feedURL, err)
	}
	return page, nil
}

func (i *Ingester) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.feedURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if i.userAgent != "" {
		req.Header.Set("User-Agent", i.userAgent)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxFeedBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}
