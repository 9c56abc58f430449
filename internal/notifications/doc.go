// Package notifications delivers pipeline events to an ntfy topic.
//
// When notifications.ntfy_topic is empty NewService returns a no-op
// implementation, so callers always hold a usable Service. Events are
// enumerated here so the runner, the publisher, and the CLI emit the same
// wording.
package notifications
