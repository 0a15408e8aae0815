package scanning

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dslipak/pdf"
)

// PDFText reads the embedded text layer of a PDF
type PDFText struct{}

// ReadText returns the plain text of every page. Scanned statements
// usually come back empty.
func (PDFText) ReadText(path string) (text string, err error) {
	// the pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("extracting text: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat PDF: %w", err)
	}

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("reading PDF: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return buf.String(), nil
}
