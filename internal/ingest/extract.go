package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extract pulls plain text out of an uploaded file.
// PDF files are parsed page by page; text/* files pass through as-is.
// Everything else is rejected before any side effect.
func Extract(data []byte, mimeType string) (string, error) {
	mt := normalizeMimeType(mimeType)
	switch {
	case mt == "application/pdf":
		return extractPDF(data)
	case strings.HasPrefix(mt, "text/"):
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}
}

// normalizeMimeType strips parameters like "; charset=utf-8".
func normalizeMimeType(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: opening pdf: %v", ErrExtractionFailed, err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages rather than losing the document.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
