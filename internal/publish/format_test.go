package publish

import (
	"strings"
	"testing"
	"time"
)

const translatedDoc = `<!DOCTYPE html>
<html>
<head><title>Ignored</title><style>p{}</style></head>
<body>
  <h1>Мост открыт</h1>
  <p>First <b>bold</b> and <a href="https://x.org/a?b=1&c=2">link</a>.</p>
  <script>bad()</script>
  <ul>
    <li>One</li>
    <li>Two &amp; three</li>
  </ul>
</body>
</html>`

func TestFormatArticle(t *testing.T) {
	blocks, err := FormatArticle([]byte(translatedDoc))
	if err != nil {
		t.Fatalf("FormatArticle: %v", err)
	}
	want := []string{
		"<b>Мост открыт</b>",
		`First <b>bold</b> and <a href="https://x.org/a?b=1&amp;c=2">link</a>.`,
		"• One\n• Two &amp; three",
	}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %q", len(want), len(blocks), blocks)
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Fatalf("block %d = %q, want %q", i, blocks[i], want[i])
		}
	}
}

func TestFooter(t *testing.T) {
	got := Footer(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), "https://news.example.com/a")
	want := "Опубликовано: 2025-01-02 03:04:05\n<a href=\"https://news.example.com/a\">Читать оригинал</a>"
	if got != want {
		t.Fatalf("Footer() = %q, want %q", got, want)
	}
	if got := Footer(time.Time{}, ""); got != "" {
		t.Fatalf("expected empty footer, got %q", got)
	}
}

func TestUTF16Len(t *testing.T) {
	cases := map[string]int{"": 0, "abc": 3, "мост": 4, "😀": 2, "a😀b": 4}
	for in, want := range cases {
		if got := UTF16Len(in); got != want {
			t.Fatalf("UTF16Len(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText(`<b>A &amp; B</b> <a href="https://x">link</a>`)
	if got != "A & B link" {
		t.Fatalf("PlainText() = %q", got)
	}
}

func TestComposeMessageFitsWithoutTruncation(t *testing.T) {
	msg, truncated := ComposeMessage([]string{"<b>T</b>", "body"}, "footer", MessageLimit)
	if truncated {
		t.Fatal("did not expect truncation")
	}
	if msg != "<b>T</b>\n\nbody\n\nfooter" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestComposeMessageTruncatesToLimit(t *testing.T) {
	paragraph := strings.TrimSpace(strings.Repeat("слово 😀 ", 150))
	blocks := []string{"<b>Заголовок</b>"}
	for i := 0; i < 10; i++ {
		blocks = append(blocks, paragraph)
	}
	footer := Footer(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), "https://news.example.com/a")

	msg, truncated := ComposeMessage(blocks, footer, MessageLimit)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if n := UTF16Len(PlainText(msg)); n > MessageLimit {
		t.Fatalf("message has %d UTF-16 units, limit %d", n, MessageLimit)
	}
	if !strings.HasSuffix(msg, footer) {
		t.Fatalf("footer missing from truncated message")
	}
	if !strings.Contains(msg, "…\n\n"+footer) {
		t.Fatalf("expected ellipsis before footer")
	}
	if !strings.HasPrefix(msg, "<b>Заголовок</b>") {
		t.Fatalf("expected heading to survive truncation")
	}
}

func TestComposeMessageCutsOversizedFirstBlock(t *testing.T) {
	long := strings.Repeat("abcd ", 100)
	msg, truncated := ComposeMessage([]string{long}, "", 50)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if n := UTF16Len(PlainText(msg)); n > 50 {
		t.Fatalf("message has %d units, limit 50", n)
	}
	if !strings.HasSuffix(msg, "…") {
		t.Fatalf("expected ellipsis, got %q", msg)
	}
}
