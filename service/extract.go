package service

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ExtractionError means no readable text could be taken from an upload
type ExtractionError struct {
	Filename string
	Reason   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract text from %s: %s", e.Filename, e.Reason)
}

// ExtractText returns the plain text of a PDF or text upload
func ExtractText(filename, contentType string, content []byte) (string, error) {
	var text string
	switch {
	case isPDF(filename, contentType, content):
		extracted, err := extractPDF(content)
		if err != nil {
			return "", &ExtractionError{Filename: filename, Reason: err.Error()}
		}
		text = extracted
	case strings.HasPrefix(contentType, "text/") || strings.HasSuffix(strings.ToLower(filename), ".txt"):
		if !utf8.Valid(content) {
			return "", &ExtractionError{Filename: filename, Reason: "text is not valid UTF-8"}
		}
		text = string(content)
	default:
		return "", &ExtractionError{Filename: filename, Reason: "unsupported file type " + contentType}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ExtractionError{Filename: filename, Reason: "document contains no readable text"}
	}
	return text, nil
}

func isPDF(filename, contentType string, content []byte) bool {
	return contentType == "application/pdf" ||
		strings.HasSuffix(strings.ToLower(filename), ".pdf") ||
		bytes.HasPrefix(content, []byte("%PDF-"))
}

func extractPDF(content []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
