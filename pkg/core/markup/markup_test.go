package markup

import (
	"strings"
	"testing"
)

func TestRender_Markdown(t *testing.T) {
	t.Parallel()

	got := Render("# Title\n\nSome **bold** text.")
	for _, want := range []string{"<h1>Title</h1>", "<strong>bold</strong>"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Render()=%q, want substring %q", got, want)
		}
	}
}

func TestRender_StripsScripts(t *testing.T) {
	t.Parallel()

	got := Render("hello <script>alert(1)</script> <a href=\"javascript:alert(1)\">x</a>")
	if strings.Contains(got, "<script") || strings.Contains(got, "javascript:") {
		t.Fatalf("Render() leaked unsafe markup: %q", got)
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	got := PlainText(Render("First paragraph.\n\nSecond &amp; last."))
	if !strings.Contains(got, "First paragraph.\nSecond & last.") && !strings.Contains(got, "First paragraph.\n\nSecond & last.") {
		t.Fatalf("PlainText()=%q", got)
	}
	if strings.Contains(got, "<") {
		t.Fatalf("PlainText() kept tags: %q", got)
	}
}
