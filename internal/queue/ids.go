package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ItemIDForURL derives the stable item id from an article URL: the hex SHA-256
// of the trimmed URL. Re-ingesting the same URL yields the same id.
func ItemIDForURL(sourceURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(sourceURL)))
	return hex.EncodeToString(sum[:])
}
