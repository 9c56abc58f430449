package ingest

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsflow/internal/queue"
)

// Selectors locate headlines on the feed page.
type Selectors struct {
	Item string
	Link string
	Date string
}

// Parse extracts items from a feed page. Links are resolved against feedURL
// and kept only when they stay under it. Items come back oldest first.
func Parse(r io.Reader, feedURL string, sel Selectors, now time.Time) ([]*queue.Item, error) {
	base, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed page: %w", err)
	}

	dates := doc.Find(sel.Date)
	seen := make(map[string]struct{})
	var items []*queue.Item
	doc.Find(sel.Item).Each(func(i int, headline *goquery.Selection) {
		link := headline.Find(sel.Link).First()
		if link.Length() == 0 && goquery.NodeName(headline) == "a" {
			link = headline
		}
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		title := strings.Join(strings.Fields(headline.Text()), " ")
		if title == "" {
			return
		}
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved.Fragment = ""
		target := resolved.String()
		if !strings.HasPrefix(target, feedURL) || target == feedURL {
			return
		}
		item := queue.NewItem(title, target, publishedAt(dates, i, now))
		if _, dup := seen[item.ID]; dup {
			return
		}
		seen[item.ID] = struct{}{}
		items = append(items, item)
	})

	for left, right := 0, len(items)-1; left < right; left, right = left+1, right-1 {
		items[left], items[right] = items[right], items[left]
	}
	return items, nil
}

// publishedAt reads the datetime attribute of the i-th date node, falling back to now.
func publishedAt(dates *goquery.Selection, i int, now time.Time) time.Time {
	if i >= dates.Length() {
		return now
	}
	raw, ok := dates.Eq(i).Attr("datetime")
	if !ok {
		return now
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return now
}
