package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"newsflow/internal/services"
)

// retryAfterBackOff stretches the next delay to honour a server Retry-After hint.
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

func (c *Client) newBackOff(ctx context.Context) (*retryAfterBackOff, backoff.BackOff) {
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

	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	hinted := &retryAfterBackOff{
		BackOff:  backoff.WithMaxRetries(expo, uint64(attempts-1)),
		maxDelay: expo.MaxInterval,
	}
	return hinted, backoff.WithContext(hinted, ctx)
}

func (c *Client) completionContentWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	hinted, policy := c.newBackOff(ctx)
	attempts := 0
	var content string

	operation := func() error {
		attempts++
		completion, body, err := c.sendChatRequestOnce(ctx, payload)
		if err == nil {
			text, finishReason := extractCompletionPayload(completion)
			if text != "" {
				content = text
				return nil
			}
			if len(completion.Choices) == 0 {
				err = fmt.Errorf("%s: empty choices", op)
			} else {
				err = &emptyContentError{
					Op:           op,
					FinishReason: finishReason,
					Refusal:      extractCompletionRefusal(completion),
					Snippet:      summarizePayloadSnippet(string(body)),
				}
			}
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
			hinted.hint = statusErr.RetryAfter
		}
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return "", classify(op, attempts, err)
	}
	return content, nil
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return true
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func classify(op string, attempts int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "", op, "provider rejected credentials", err)
		case statusErr.StatusCode < http.StatusInternalServerError &&
			statusErr.StatusCode != http.StatusTooManyRequests &&
			statusErr.StatusCode != http.StatusRequestTimeout:
			return services.Wrap(services.ErrValidation, "", op, "provider rejected request", err)
		}
	}
	if retryable(err) {
		return services.Wrap(services.ErrTransient, "", op, fmt.Sprintf("failed after %d attempts", attempts), err)
	}
	return services.Wrap(services.ErrExternalTool, "", op, "request failed", err)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
