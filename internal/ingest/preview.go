package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MaxPreview is the preview length limit in runes.
const MaxPreview = 2000

const sniffBytes = 16 << 10

// Preview returns up to MaxPreview runes of readable text from the file at
// path. PDFs are text-extracted; other text files are read from the start;
// binary files get a one-line description.
func Preview(path, contentType string) (string, error) {
	if isPDF(path, contentType) {
		return pdfPreview(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, sniffBytes))
	if err != nil {
		return "", err
	}
	if !looksLikeText(buf) {
		info, err := f.Stat()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("binary file, %d bytes", info.Size()), nil
	}
	return truncateRunes(strings.ToValidUTF8(string(buf), ""), MaxPreview), nil
}

func isPDF(path, contentType string) bool {
	return strings.HasPrefix(contentType, "application/pdf") || strings.EqualFold(filepath.Ext(path), ".pdf")
}

func pdfPreview(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	buf, err := io.ReadAll(io.LimitReader(text, sniffBytes))
	if err != nil {
		return "", err
	}
	s := strings.Join(strings.Fields(string(buf)), " ")
	if s == "" {
		return fmt.Sprintf("pdf, %d pages, no extractable text", r.NumPage()), nil
	}
	return truncateRunes(s, MaxPreview), nil
}

func looksLikeText(b []byte) bool {
	if bytes.IndexByte(b, 0) >= 0 {
		return false
	}
	if utf8.Valid(b) {
		return true
	}
	// a multi-byte rune may be cut at the sniff boundary
	for i := 1; i < utf8.UTFMax && i < len(b); i++ {
		if utf8.Valid(b[:len(b)-i]) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
