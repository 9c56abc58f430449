package translate

import "strings"

// ExtractHTML pulls the HTML document out of a model reply.
func ExtractHTML(reply string) string {
	content := strings.TrimSpace(reply)
	if doc, ok := htmlDocumentBlock(content); ok {
		return doc
	}
	if block, ok := fencedBlock(content, "```html"); ok {
		return block
	}
	if block, ok := anyFencedBlock(content); ok {
		return block
	}
	return content
}

// LooksLikeHTML reports whether content has a closed html or body element.
func LooksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return (strings.Contains(lower, "<html") && strings.Contains(lower, "</html>")) ||
		(strings.Contains(lower, "<body") && strings.Contains(lower, "</body>"))
}

func htmlDocumentBlock(s string) (string, bool) {
	lower := strings.ToLower(s)
	start := strings.Index(lower, "<!doctype html")
	if start < 0 {
		start = strings.Index(lower, "<html")
	}
	if start < 0 {
		return "", false
	}
	const endTag = "</html>"
	end := strings.LastIndex(lower, endTag)
	if end < 0 || end+len(endTag) <= start {
		return "", false
	}
	return strings.TrimSpace(s[start : end+len(endTag)]), true
}

func fencedBlock(s, fence string) (string, bool) {
	start := strings.Index(strings.ToLower(s), fence)
	if start < 0 {
		return "", false
	}
	after := s[start+len(fence):]
	after = strings.TrimPrefix(after, "\r\n")
	after = strings.TrimPrefix(after, "\n")
	end := strings.Index(after, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(after[:end]), true
}

func anyFencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	after := s[start+3:]
	// Skip the language tag line.
	if nl := strings.Index(after, "\n"); nl >= 0 {
		after = after[nl+1:]
	}
	end := strings.Index(after, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(after[:end]), true
}
