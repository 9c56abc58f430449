package queue

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle of a news item. Items only ever move one
// position forward along allStatuses.
type Status string

const (
	StatusNew        Status = "new"
	StatusDownloaded Status = "downloaded"
	StatusExtracted  Status = "extracted"
	StatusTranslated Status = "translated"
	StatusPublished  Status = "published"
)

var allStatuses = []Status{
	StatusNew,
	StatusDownloaded,
	StatusExtracted,
	StatusTranslated,
	StatusPublished,
}

var statusIndex = func() map[Status]int {
	index := make(map[Status]int, len(allStatuses))
	for i, status := range allStatuses {
		index[status] = i
	}
	return index
}()

// AllStatuses returns every status in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a raw string (status value or stage name, any case) into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusIndex[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// Valid reports whether the status is part of the pipeline.
func (s Status) Valid() bool {
	_, ok := statusIndex[s]
	return ok
}

// Index returns the position of the status in the pipeline, or -1.
func (s Status) Index() int {
	if idx, ok := statusIndex[s]; ok {
		return idx
	}
	return -1
}

// Next returns the status that follows s. Published has no successor.
func (s Status) Next() (Status, bool) {
	idx, ok := statusIndex[s]
	if !ok || idx+1 >= len(allStatuses) {
		return "", false
	}
	return allStatuses[idx+1], true
}

// Prev returns the status that precedes s. New has no predecessor.
func (s Status) Prev() (Status, bool) {
	idx, ok := statusIndex[s]
	if !ok || idx == 0 {
		return "", false
	}
	return allStatuses[idx-1], true
}

// StageName is the display form used to name the stage that produces s and
// its artifacts ("Downloaded", "Extracted", ...).
func (s Status) StageName() string {
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English).String(string(s))
}

// ValidTransition reports whether from -> to advances exactly one position.
func ValidTransition(from, to Status) bool {
	fromIdx, okFrom := statusIndex[from]
	toIdx, okTo := statusIndex[to]
	return okFrom && okTo && toIdx == fromIdx+1
}

// CheckTransition returns ErrIllegalTransition unless to is the status right
// after from.
func CheckTransition(from, to Status) error {
	if !ValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// Item is a single news article moving through the pipeline. Attempts and
// LastError are diagnostics only; coordination relies on Status alone.
type Item struct {
	ID          string
	Title       string
	SourceURL   string
	PublishedAt time.Time
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Attempts    int
	LastError   string
}

// NewItem builds an item in the initial status with an id derived from its URL.
func NewItem(title, sourceURL string, publishedAt time.Time) *Item {
	return &Item{
		ID:          ItemIDForURL(sourceURL),
		Title:       strings.TrimSpace(title),
		SourceURL:   strings.TrimSpace(sourceURL),
		PublishedAt: publishedAt.UTC(),
		Status:      StatusNew,
	}
}

// TickRecord summarizes the most recent tick of one stage.
type TickRecord struct {
	Stage         string
	CorrelationID string
	StartedAt     time.Time
	FinishedAt    time.Time
	Selected      int
	Advanced      int
	Reused        int
	Raced         int
	Failed        int
	Error         string
}

// DatabaseHealth describes the SQLite store state for diagnostics.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	TotalItems       int
	IntegrityCheck   bool
	Error            string
}
