package textutil

import "testing"

func TestWrapText(t *testing.T) {
	wrapped := WrapText("update the graphics driver immediately", 10)
	if wrapped == "" {
		t.Fatal("wrap produced nothing")
	}
	if got := WrapText("unchanged", 0); got != "unchanged" {
		t.Errorf("width 0 should pass through, got %q", got)
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	if got := TruncateWithEllipsis("short", 10); got != "short" {
		t.Errorf("got %q, want unchanged", got)
	}
	got := TruncateWithEllipsis("a very long driver description", 10)
	if StringWidth(got) > 10 {
		t.Errorf("truncated to %q, width %d > 10", got, StringWidth(got))
	}
	if got := TruncateWithEllipsis("abcdef", 2); got != ".." {
		t.Errorf("tiny width: got %q", got)
	}
	styled := "\x1b[31mnvlddmkm.sys is misbehaving badly\x1b[0m"
	if w := StringWidth(TruncateWithEllipsis(styled, 12)); w > 12 {
		t.Errorf("styled truncation width = %d", w)
	}
}
