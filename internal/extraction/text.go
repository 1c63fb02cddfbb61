package extraction

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// Kind is the format of an uploaded report
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
	KindText Kind = "text"
)

// DetectKind guesses the report format from its file name and content type
func DetectKind(filename, contentType string) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".html", ".htm":
		return KindHTML
	case ".txt", ".md":
		return KindText
	}

	switch {
	case strings.Contains(contentType, "pdf"):
		return KindPDF
	case strings.Contains(contentType, "html"):
		return KindHTML
	default:
		return KindText
	}
}

// ReadText extracts plain text from a report of the given kind
func ReadText(kind Kind, data []byte) (string, error) {
	switch kind {
	case KindPDF:
		return TextFromPDF(bytes.NewReader(data), int64(len(data)))
	case KindHTML:
		return TextFromHTML(bytes.NewReader(data))
	default:
		return normalizeSpace(string(data)), nil
	}
}

// TextFromPDF concatenates the text of every page
func TextFromPDF(r io.ReaderAt, size int64) (string, error) {
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return normalizeSpace(buf.String()), nil
}

// TextFromHTML returns the visible text of an HTML document
func TextFromHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer").Remove()

	var parts []string
	doc.Find("body").Find("h1, h2, h3, h4, p, li, td, th, blockquote").Each(func(i int, s *goquery.Selection) {
		// nested matches repeat their parent's text
		if s.Find("p, li, td, th").Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})

	if len(parts) == 0 {
		return normalizeSpace(doc.Find("body").Text()), nil
	}
	return normalizeSpace(strings.Join(parts, "\n")), nil
}

// normalizeSpace collapses runs of blanks on each line and drops empty lines
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
