// Package extract implements the Extracted stage: readability extraction of
// the downloaded page into a minimal standalone HTML document.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"newsflow/internal/queue"
	"newsflow/internal/services"
	"newsflow/internal/stage"
)

const stageName = "Extracted"

// strippedSelectors are removed from the readable content before it is saved.
const strippedSelectors = "script, style, iframe, form, noscript, object, embed, button, input, select, textarea"

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>%s</title>
</head>
<body>
    <h1>%s</h1>
    %s
</body>
</html>
`

// Extractor turns raw article HTML into readable content.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Execute extracts the readable part of prior using item.SourceURL as the base for relative links.
func (e *Extractor) Execute(ctx context.Context, item *queue.Item, prior []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(prior)) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "extract", "downloaded page is empty", nil)
	}
	base, err := url.Parse(strings.TrimSpace(item.SourceURL))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "extract", "invalid source url", err)
	}

	article, err := readability.FromReader(bytes.NewReader(prior), base)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "readability", "extraction failed", err)
	}

	content, err := cleanContent(article.Content)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "cleanup", "parse readable content", err)
	}
	if content == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "extract", "no readable content found", nil)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = strings.TrimSpace(item.Title)
	}
	escaped := html.EscapeString(title)
	return fmt.Appendf(nil, documentTemplate, escaped, escaped, content), nil
}

// HealthCheck always reports ready.
func (e *Extractor) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("extractor")
}

// cleanContent drops interactive and embedded elements. It returns "" when no
// text survives.
func cleanContent(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	doc.Find(strippedSelectors).Remove()
	body := doc.Find("body")
	if strings.TrimSpace(body.Text()) == "" {
		return "", nil
	}
	out, err := body.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
