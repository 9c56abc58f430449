package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"

	"newsflow/internal/config"
	"newsflow/internal/logging"
	"newsflow/internal/queue"
	"newsflow/internal/services"
	"newsflow/internal/stage"
)

const (
	stageName        = "Downloaded"
	defaultUserAgent = "Mozilla/5.0 (compatible; newsflow/1.0)"
	defaultMaxBody   = 10 << 20
	robotsMaxBody    = 512 << 10
)

// Downloader fetches article pages.
type Downloader struct {
	client        *http.Client
	userAgent     string
	maxBodyBytes  int64
	respectRobots bool
	attempts      int
	baseDelay     time.Duration
	maxDelay      time.Duration
	logger        *slog.Logger

	robotsMu sync.Mutex
	robots   map[string]*robotstxt.RobotsData
}

// Option customizes a Downloader.
type Option func(*Downloader)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithBackoff overrides the retry delays.
func WithBackoff(base, max time.Duration) Option {
	return func(d *Downloader) {
		d.baseDelay = base
		d.maxDelay = max
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New builds a Downloader from the fetch configuration.
func New(cfg config.Fetch, opts ...Option) *Downloader {
	d := &Downloader{
		client:        &http.Client{Timeout: 60 * time.Second},
		userAgent:     strings.TrimSpace(cfg.UserAgent),
		maxBodyBytes:  cfg.MaxBodyBytes,
		respectRobots: cfg.RespectRobots,
		attempts:      cfg.RetryAttempts + 1,
		baseDelay:     time.Second,
		maxDelay:      30 * time.Second,
		logger:        logging.NewNop(),
		robots:        make(map[string]*robotstxt.RobotsData),
	}
	if d.userAgent == "" {
		d.userAgent = defaultUserAgent
	}
	if d.maxBodyBytes <= 0 {
		d.maxBodyBytes = defaultMaxBody
	}
	if d.attempts < 1 {
		d.attempts = 1
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "downloader")
	return d
}

// Execute downloads item.SourceURL. prior is unused; Downloaded is the first stage.
func (d *Downloader) Execute(ctx context.Context, item *queue.Item, _ []byte) ([]byte, error) {
	target, err := parseTarget(item.SourceURL)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "parse url", "invalid source url", err)
	}
	if d.respectRobots {
		allowed, err := d.allowedByRobots(ctx, target)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, services.Wrap(services.ErrValidation, stageName, "robots", "disallowed by robots.txt for "+target.Host, nil)
		}
	}

	var body []byte
	attempts := 0
	policy := backoff.WithContext(d.newBackOff(), ctx)
	operation := func() error {
		attempts++
		payload, err := d.fetchOnce(ctx, target.String())
		if err == nil {
			body = payload
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		logging.WithContext(ctx, d.logger).Debug("download attempt failed",
			logging.Int("attempt", attempts),
			logging.Error(err),
		)
		return err
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, d.classify(attempts, err)
	}
	return body, nil
}

// HealthCheck reports the downloader ready; it has no external dependency to probe.
func (d *Downloader) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("downloader")
}

func parseTarget(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("missing host")
	}
	return parsed, nil
}

type statusError struct {
	StatusCode int
	URL        string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: http %d", e.URL, e.StatusCode)
}

var errBodyTooLarge = errors.New("response body exceeds size limit")

func (d *Downloader) fetchOnce(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &statusError{StatusCode: resp.StatusCode, URL: target}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > d.maxBodyBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errBodyTooLarge, d.maxBodyBytes)
	}
	return toUTF8(raw, resp.Header.Get("Content-Type"))
}

// toUTF8 decodes raw using the charset named by contentType or sniffed from the document.
func toUTF8(raw []byte, contentType string) ([]byte, error) {
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	return decoded, nil
}

func (d *Downloader) newBackOff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = d.baseDelay
	if expo.InitialInterval <= 0 {
		expo.InitialInterval = time.Millisecond
	}
	expo.MaxInterval = d.maxDelay
	if expo.MaxInterval < expo.InitialInterval {
		expo.MaxInterval = expo.InitialInterval
	}
	expo.MaxElapsedTime = 0
	expo.Reset()
	return backoff.WithMaxRetries(expo, uint64(d.attempts-1))
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	if errors.Is(err, errBodyTooLarge) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

func (d *Downloader) classify(attempts int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageName, "fetch", "deadline reached", err)
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, stageName, "fetch", "source page not found", err)
	}
	if errors.Is(err, errBodyTooLarge) {
		return services.Wrap(services.ErrValidation, stageName, "fetch", "page too large", err)
	}
	if retryable(err) {
		return services.Wrap(services.ErrTransient, stageName, "fetch", fmt.Sprintf("failed after %d attempts", attempts), err)
	}
	return services.Wrap(services.ErrExternalTool, stageName, "fetch", "request failed", err)
}
