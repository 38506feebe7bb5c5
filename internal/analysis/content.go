package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for image.Decode
	_ "image/png"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrInvalidImage is returned when bytes classified as an image do not decode.
var ErrInvalidImage = errors.New("invalid image data")

// Image is a decoded image ready to be sent to a vision model.
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// DecodeImage fully decodes data so that corrupt uploads fail before any
// provider call. The MIME type follows the detected format, not the suffix.
func DecodeImage(data []byte) (Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	b := img.Bounds()
	return Image{
		Data:     data,
		MIMEType: "image/" + format,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

// Document is the textual form of a PDF upload.
type Document struct {
	Name      string
	Text      string
	Pages     int
	Extracted bool
	Truncated bool
}

// ExtractDocument pulls plain text out of a PDF. When the PDF has no
// extractable text the raw bytes are used instead, with invalid UTF-8
// dropped. Text is cut to maxChars runes when maxChars is positive.
func ExtractDocument(name string, data []byte, maxChars int) Document {
	doc := Document{Name: name}

	text, pages, err := extractPDFText(data)
	if err == nil && strings.TrimSpace(text) != "" {
		doc.Text = text
		doc.Pages = pages
		doc.Extracted = true
	} else {
		doc.Text = strings.ToValidUTF8(string(data), "")
	}

	if maxChars > 0 && utf8.RuneCountInString(doc.Text) > maxChars {
		doc.Text = string([]rune(doc.Text)[:maxChars])
		doc.Truncated = true
	}
	return doc
}

func extractPDFText(data []byte) (text string, pages int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("extract pdf text: %w", err)
	}
	buf, err := io.ReadAll(plain)
	if err != nil {
		return "", 0, fmt.Errorf("read pdf text: %w", err)
	}
	return string(buf), r.NumPage(), nil
}
