package media

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedType = errors.New("only images and PDF files are accepted")
	ErrInvalidPDF      = errors.New("file is not a readable PDF")
)

// Inspection is what content sniffing learned about an upload.
type Inspection struct {
	ContentType string
	// Extension has no leading dot.
	Extension string
	Kind      Kind
	Pages     int
}

// Inspect applies the picker's accept filter (image/* and application/pdf)
// to the bytes themselves. PDFs must open and have at least one page.
func Inspect(data []byte) (Inspection, error) {
	mtype := mimetype.Detect(data)

	if mtype.Is("application/pdf") {
		pages, err := countPages(data)
		if err != nil {
			return Inspection{}, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
		}
		if pages == 0 {
			return Inspection{}, ErrInvalidPDF
		}
		return Inspection{
			ContentType: "application/pdf",
			Extension:   "pdf",
			Kind:        KindPDF,
			Pages:       pages,
		}, nil
	}

	contentType := mtype.String()
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !strings.HasPrefix(contentType, "image/") {
		return Inspection{}, fmt.Errorf("%w: got %s", ErrUnsupportedType, contentType)
	}
	return Inspection{
		ContentType: contentType,
		Extension:   strings.TrimPrefix(mtype.Extension(), "."),
		Kind:        KindImage,
	}, nil
}

func countPages(data []byte) (pages int, err error) {
	// the pdf reader panics on some malformed cross reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}
