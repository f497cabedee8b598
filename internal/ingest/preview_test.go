package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPreview_Text(t *testing.T) {
	p := writeFile(t, "notes.txt", []byte("call dropped after 32 seconds"))
	got, err := Preview(p, "text/plain")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if got != "call dropped after 32 seconds" {
		t.Errorf("Preview = %q", got)
	}
}

func TestPreview_Truncates(t *testing.T) {
	p := writeFile(t, "long.log", []byte(strings.Repeat("é", MaxPreview+50)))
	got, err := Preview(p, "")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if n := utf8.RuneCountInString(got); n != MaxPreview {
		t.Errorf("rune count = %d, want %d", n, MaxPreview)
	}
}

func TestPreview_Binary(t *testing.T) {
	p := writeFile(t, "capture.pcap", []byte{0xd4, 0xc3, 0xb2, 0xa1, 0x02, 0x00, 0x04, 0x00})
	got, err := Preview(p, "application/vnd.tcpdump.pcap")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if got != "binary file, 8 bytes" {
		t.Errorf("Preview = %q", got)
	}
}

func TestPreview_BrokenPDF(t *testing.T) {
	p := writeFile(t, "report.pdf", []byte("not really a pdf"))
	if _, err := Preview(p, "application/pdf"); err == nil {
		t.Error("expected error for malformed pdf")
	}
}

func TestPreview_MissingFile(t *testing.T) {
	if _, err := Preview(filepath.Join(t.TempDir(), "nope.txt"), "text/plain"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLooksLikeText_CutRune(t *testing.T) {
	b := []byte("abc\xc3") // first byte of é
	if !looksLikeText(b) {
		t.Error("trailing partial rune should still count as text")
	}
	if looksLikeText([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb}) {
		t.Error("invalid bytes should not count as text")
	}
}
