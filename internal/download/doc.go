// Package download implements the Downloaded stage: it fetches an item's
// source URL and stores the page as UTF-8 HTML.
//
// Transient failures (network timeouts, 408, 429, 5xx) retry with bounded
// exponential backoff inside the transform deadline. Bodies are decoded with
// golang.org/x/net/html/charset using the Content-Type header and any meta
// charset, then capped at the configured size. When robots.txt checking is
// enabled, each host's policy is fetched once and cached for the process.
package download
