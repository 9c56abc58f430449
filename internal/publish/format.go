package publish

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
)

// MessageLimit is the Bot API sendMessage limit in UTF-16 code units.
const MessageLimit = 4096

const (
	ellipsis       = "…"
	blockSeparator = "\n\n"
	publishedLabel = "Опубликовано"
	sourceLabel    = "Читать оригинал"
	dateLayout     = "2006-01-02 15:04:05"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	spacePattern      = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// FormatArticle converts an HTML document into Telegram HTML blocks.
func FormatArticle(document []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return nil, fmt.Errorf("document has no body")
	}
	var buf strings.Builder
	for _, node := range body.Nodes {
		renderChildren(&buf, node)
	}
	text := blankLinesPattern.ReplaceAllString(buf.String(), blockSeparator)
	var blocks []string
	for _, block := range strings.Split(text, blockSeparator) {
		block = strings.TrimSpace(block)
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

func renderChildren(buf *strings.Builder, n *nethtml.Node) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		renderNode(buf, child)
	}
}

func renderNode(buf *strings.Builder, n *nethtml.Node) {
	switch n.Type {
	case nethtml.TextNode:
		writeText(buf, n.Data)
		return
	case nethtml.ElementNode:
	default:
		return
	}

	switch n.Data {
	case "script", "style", "head", "title", "meta", "link", "noscript", "template", "iframe", "form", "img", "svg", "figure":
	case "h1", "h2", "h3", "h4", "h5", "h6":
		endBlock(buf)
		buf.WriteString("<b>" + inline(n) + "</b>")
		endBlock(buf)
	case "p", "blockquote", "pre":
		endBlock(buf)
		buf.WriteString(inline(n))
		endBlock(buf)
	case "b", "strong":
		writeInline(buf, "<b>", inline(n), "</b>")
	case "i", "em":
		writeInline(buf, "<i>", inline(n), "</i>")
	case "a":
		href := strings.TrimSpace(attr(n, "href"))
		content := inline(n)
		if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			writeInline(buf, "", content, "")
			return
		}
		writeInline(buf, `<a href="`+html.EscapeString(href)+`">`, content, "</a>")
	case "br":
		buf.WriteString("\n")
	case "li":
		trimTrailingSpace(buf)
		if s := buf.String(); s != "" && !strings.HasSuffix(s, "\n") {
			buf.WriteString("\n")
		}
		buf.WriteString("• " + inline(n) + "\n")
	case "span", "u", "s", "small", "sup", "sub", "code", "mark", "abbr", "time", "cite", "q":
		writeInline(buf, "", inline(n), "")
	default:
		renderChildren(buf, n)
		if isBlock(n.Data) {
			endBlock(buf)
		}
	}
}

// inline renders n's children on a single line so no block separator can split a tag pair.
func inline(n *nethtml.Node) string {
	var sub strings.Builder
	renderChildren(&sub, n)
	out := strings.ReplaceAll(sub.String(), "\n", " ")
	out = spacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

func writeInline(buf *strings.Builder, open, content, closeTag string) {
	if content == "" {
		return
	}
	buf.WriteString(open + content + closeTag)
}

// writeText appends collapsed text, dropping whitespace at line starts.
func writeText(buf *strings.Builder, data string) {
	text := spacePattern.ReplaceAllString(strings.ReplaceAll(data, "\n", " "), " ")
	if text == "" {
		return
	}
	if atLineStart(buf) {
		text = strings.TrimLeft(text, " ")
	}
	if text == "" {
		return
	}
	buf.WriteString(html.EscapeString(text))
}

func atLineStart(buf *strings.Builder) bool {
	s := buf.String()
	return s == "" || strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n")
}

func endBlock(buf *strings.Builder) {
	trimTrailingSpace(buf)
	s := buf.String()
	if s == "" || strings.HasSuffix(s, blockSeparator) {
		return
	}
	if strings.HasSuffix(s, "\n") {
		buf.WriteString("\n")
		return
	}
	buf.WriteString(blockSeparator)
}

func trimTrailingSpace(buf *strings.Builder) {
	s := buf.String()
	trimmed := strings.TrimRight(s, " ")
	if len(trimmed) != len(s) {
		buf.Reset()
		buf.WriteString(trimmed)
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "div", "section", "article", "main", "header", "footer", "aside", "nav",
		"ul", "ol", "dl", "dt", "dd", "table", "tr", "figcaption", "hr", "body", "html":
		return true
	}
	return false
}

func attr(n *nethtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// PlainText approximates the text Telegram counts after parsing entities.
func PlainText(telegramHTML string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(telegramHTML, ""))
}

// UTF16Len counts UTF-16 code units in s.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Footer renders the publication date and source link appended to every post.
func Footer(publishedAt time.Time, sourceURL string) string {
	var parts []string
	if !publishedAt.IsZero() {
		parts = append(parts, publishedLabel+": "+publishedAt.Format(dateLayout))
	}
	if link := strings.TrimSpace(sourceURL); link != "" {
		parts = append(parts, `<a href="`+html.EscapeString(link)+`">`+sourceLabel+`</a>`)
	}
	return strings.Join(parts, "\n")
}

// ComposeMessage joins blocks and footer, truncating blocks so the result
// stays within limit UTF-16 units of plain text.
func ComposeMessage(blocks []string, footer string, limit int) (string, bool) {
	footerUnits := 0
	if footer != "" {
		footerUnits = UTF16Len(blockSeparator + PlainText(footer))
	}
	budget := limit - footerUnits

	var kept []string
	used := 0
	truncated := false
	for i, block := range blocks {
		sep := 0
		if len(kept) > 0 {
			sep = UTF16Len(blockSeparator)
		}
		units := UTF16Len(PlainText(block))
		reserve := 0
		if i < len(blocks)-1 {
			reserve = UTF16Len(ellipsis)
		}
		if used+sep+units+reserve <= budget || (i == len(blocks)-1 && used+sep+units <= budget) {
			kept = append(kept, block)
			used += sep + units
			continue
		}
		truncated = true
		room := budget - used - sep - UTF16Len(ellipsis)
		if room > 0 {
			if cut := cutToUnits(PlainText(block), room); cut != "" {
				kept = append(kept, html.EscapeString(cut)+ellipsis)
				break
			}
		}
		if len(kept) > 0 {
			kept[len(kept)-1] += ellipsis
		} else if budget >= UTF16Len(ellipsis) {
			kept = append(kept, ellipsis)
		}
		break
	}

	message := strings.Join(kept, blockSeparator)
	if footer != "" {
		if message != "" {
			message += blockSeparator
		}
		message += footer
	}
	return message, truncated
}

// cutToUnits returns the longest prefix of s within units, preferring a word boundary.
func cutToUnits(s string, units int) string {
	used := 0
	end := 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if used+n > units {
			break
		}
		used += n
		end = i + len(string(r))
	}
	prefix := s[:end]
	if end < len(s) {
		if idx := strings.LastIndexAny(prefix, " \n"); idx > len(prefix)/2 {
			prefix = prefix[:idx]
		}
	}
	return strings.TrimSpace(prefix)
}
