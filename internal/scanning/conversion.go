package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// DefaultDPI is the resolution pages are rendered at before being sent to a vision model
const DefaultDPI = 150

// PageRenderer rasterizes every page of a PDF to PNG
type PageRenderer struct {
	dpi float64
}

// NewPageRenderer creates a PageRenderer, falling back to DefaultDPI when dpi is not positive
func NewPageRenderer(dpi int) *PageRenderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &PageRenderer{dpi: float64(dpi)}
}

// RenderPages renders each page of the PDF at path, in page order
func (p *PageRenderer) RenderPages(path string) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([][]byte, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		data, err := doc.ImagePNG(i, p.dpi)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d: %w", i+1, err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}

// IsImageType reports whether contentType is an image upload rather than a PDF
func IsImageType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(contentType, "image/")
}

// imageToPNG converts any image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// Go's standard image package doesn't support HEIC (common for iPhone photos of statements)
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") {
				return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// PrepareImage returns a PNG version of an uploaded statement photo.
// PNG uploads are passed through untouched.
func PrepareImage(imageData []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "image/png" && !isHEICFormat(imageData) {
		return imageData, nil
	}
	return imageToPNG(imageData, mimeType)
}
