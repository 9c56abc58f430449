package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"newsflow/internal/services"
)

const (
	defaultBaseURL        = "https://api.telegram.org"
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = time.Minute
	parseModeHTML         = "HTML"
)

// Config holds the bot credentials and endpoint.
type Config struct {
	BotToken       string
	BaseURL        string
	TimeoutSeconds int
}

// Message is the response payload of a successful sendMessage call.
type Message struct {
	MessageID int64 `json:"message_id"`
	Date      int64 `json:"date"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

// APIError is a non-OK Bot API response.
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram api: http %d: %s (retry after %s)", e.StatusCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram api: http %d: %s", e.StatusCode, e.Description)
}

// Client talks to the Bot API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides attempt count and backoff bounds.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// NewClient builds a Bot API client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			BotToken:       strings.TrimSpace(cfg.BotToken),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:     &http.Client{Timeout: timeout},
		retryAttempts:  defaultRetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = defaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendHTML posts text to chatID with HTML parse mode.
func (c *Client) SendHTML(ctx context.Context, chatID, text string) (*Message, error) {
	if c.cfg.BotToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "telegram send", "bot token required", nil)
	}
	if strings.TrimSpace(chatID) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "telegram send", "chat id required", nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "", "telegram send", "message text is empty", nil)
	}
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             parseModeHTML,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send: encode body: %w", err)
	}

	hinted := c.newBackOff()
	policy := backoff.WithContext(hinted, ctx)
	var msg Message
	attempts := 0
	operation := func() error {
		attempts++
		raw, err := c.call(ctx, "sendMessage", body)
		if err == nil {
			if err := json.Unmarshal(raw, &msg); err != nil {
				return backoff.Permanent(fmt.Errorf("telegram send: decode message: %w", err))
			}
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			hinted.hint = apiErr.RetryAfter
		}
		return err
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, classify(attempts, err)
	}
	return &msg, nil
}

// GetMe verifies the bot token.
func (c *Client) GetMe(ctx context.Context) error {
	if c.cfg.BotToken == "" {
		return services.Wrap(services.ErrConfiguration, "", "telegram getMe", "bot token required", nil)
	}
	if _, err := c.call(ctx, "getMe", nil); err != nil {
		return classify(1, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, body []byte) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, c.cfg.BotToken, method)
	httpMethod := http.MethodGet
	var reader io.Reader
	if body != nil {
		httpMethod = http.MethodPost
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: new request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, redactToken(err, c.cfg.BotToken))
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram %s: read body: %w", method, err)
	}
	var parsed apiResponse
	decodeErr := json.Unmarshal(data, &parsed)
	if resp.StatusCode == http.StatusOK && decodeErr == nil && parsed.OK {
		return parsed.Result, nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, ErrorCode: parsed.ErrorCode, Description: strings.TrimSpace(parsed.Description)}
	if apiErr.Description == "" {
		apiErr.Description = strings.TrimSpace(string(data))
	}
	if parsed.Parameters != nil && parsed.Parameters.RetryAfter > 0 {
		apiErr.RetryAfter = time.Duration(parsed.Parameters.RetryAfter) * time.Second
	}
	return nil, apiErr
}

// redactToken keeps the bot token out of url.Error messages.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w", strings.ReplaceAll(err.Error(), token, "<redacted>"), errTimeout)
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<redacted>"))
}

var errTimeout = errors.New("request timed out")

type retryAfterBackOff struct {
	backoff.BackOff
	maxDelay time.Duration
	hint     time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	if b.maxDelay > 0 && next > b.maxDelay {
		next = b.maxDelay
	}
	return next
}

func (c *Client) newBackOff() *retryAfterBackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryBaseDelay
	if expo.InitialInterval <= 0 {
		expo.InitialInterval = time.Millisecond
	}
	expo.MaxInterval = c.retryMaxDelay
	if expo.MaxInterval <= 0 {
		expo.MaxInterval = defaultRetryMaxDelay
	}
	expo.MaxElapsedTime = 0
	expo.RandomizationFactor = 0
	expo.Reset()
	attempts := c.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &retryAfterBackOff{
		BackOff:  backoff.WithMaxRetries(expo, uint64(attempts-1)),
		maxDelay: expo.MaxInterval,
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, errTimeout) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classify(attempts int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusNotFound:
			return services.Wrap(services.ErrConfiguration, "", "telegram send", "bot api rejected credentials or chat", err)
		case apiErr.StatusCode == http.StatusBadRequest:
			return services.Wrap(services.ErrValidation, "", "telegram send", "bot api rejected message", err)
		}
	}
	if retryable(err) {
		return services.Wrap(services.ErrTransient, "", "telegram send", fmt.Sprintf("failed after %d attempts", attempts), err)
	}
	return services.Wrap(services.ErrExternalTool, "", "telegram send", "request failed", err)
}
