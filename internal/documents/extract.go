package documents

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedDocument is returned for content that is neither PDF nor text.
var ErrUnsupportedDocument = errors.New("unsupported document format")

var pdfMagic = []byte("%PDF-")

// ContentType reports the MIME type ExtractText will treat data as.
func ContentType(data []byte) string {
	if bytes.HasPrefix(data, pdfMagic) {
		return "application/pdf"
	}
	return "text/plain; charset=utf-8"
}

// ExtractText returns the plain text of a PDF or UTF-8 text document, trimmed.
func ExtractText(data []byte) (string, error) {
	if bytes.HasPrefix(data, pdfMagic) {
		return extractPDF(data)
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", ErrUnsupportedDocument
	}
	return strings.TrimSpace(string(data)), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(string(buf)), nil
}
