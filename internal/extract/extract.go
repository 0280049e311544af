// Package extract turns uploaded files into analysis attachments: PDFs
// become extracted text, plain files become UTF-8 text, images stay raw
// bytes. Text is truncated here so downstream prompt assembly never has
// to worry about runaway documents.
package extract

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/raphaelgruber/helix-go/internal/models"
)

const (
	// MaxPDFChars caps extracted PDF text carried into analysis.
	MaxPDFChars = 8000
	// MaxTextChars caps plain text attachments carried into analysis.
	MaxTextChars = 5000
)

// FromUpload prepares one uploaded file for analysis. mediaType is the
// client-declared content type; when missing or generic it is sniffed
// from the bytes. Extraction never fails: an unreadable PDF degrades to
// a note in place of its text so the analysis can still mention the file.
func FromUpload(filename, mediaType string, data []byte) models.Attachment {
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = sniffMediaType(data)
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return models.Attachment{
			Kind:      models.AttachmentImage,
			Filename:  filename,
			MediaType: mediaType,
			Data:      data,
		}
	case mediaType == "application/pdf":
		text, err := PDFText(data)
		if err != nil {
			text = fmt.Sprintf("[could not extract text from %s: %v]", filename, err)
		}
		return models.Attachment{
			Kind:      models.AttachmentPDF,
			Filename:  filename,
			MediaType: mediaType,
			Text:      Truncate(text, MaxPDFChars),
		}
	default:
		return models.Attachment{
			Kind:      models.AttachmentText,
			Filename:  filename,
			MediaType: mediaType,
			Text:      Truncate(strings.ToValidUTF8(string(data), ""), MaxTextChars),
		}
	}
}

// PDFText extracts the text of every page, joined by blank lines. Pages
// that fail to render or carry no text are skipped.
func PDFText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// sniffMediaType falls back to content sniffing when the client did not
// declare a type. http.DetectContentType never returns an empty string.
func sniffMediaType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(data)
}
