// Package llm provides an OpenAI-compatible chat completion client.
//
// The translate stage uses Complete to turn an extracted article into the
// target language; preflight uses HealthCheck to confirm the key and model
// answer. The default endpoint is OpenRouter, and the Referer and X-Title
// headers it expects are sent when configured.
//
// # Retry Behaviour
//
// Requests that fail with HTTP 408, 429 or 5xx, a network timeout, or an empty
// completion are retried with exponential backoff (github.com/cenkalti/backoff/v4,
// base 1s, max 10s, 5 attempts by default). A Retry-After header raises the
// next delay to at least the requested value. Context cancellation aborts
// retries immediately.
//
// # Errors
//
// Failures carry services markers: 401/403 become ErrConfiguration, other 4xx
// responses ErrValidation, and exhausted retries ErrTransient, so stage logs
// can tell a bad key from a flaky provider.
package llm
