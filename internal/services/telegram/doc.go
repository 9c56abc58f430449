// Package telegram sends messages through the Telegram Bot API.
//
// Only sendMessage is used. Text is sent with parse_mode=HTML and link
// previews disabled. A 429 response carries parameters.retry_after, which the
// client honours before retrying; 5xx and network timeouts retry with
// exponential backoff.
package telegram
