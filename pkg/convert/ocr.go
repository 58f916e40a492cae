package convert

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

// convertImage runs Tesseract OCR over the image bytes. Requires the
// tesseract shared library at build time.
func (c *Converter) convertImage(data []byte) (result, error) {
	if !c.OCREnabled {
		return result{}, fmt.Errorf("%w: image input requires OCR", domain.ErrUnsupportedFormat)
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetImageFromBytes(data); err != nil {
		return result{}, fmt.Errorf("%w: failed to load image: %v", domain.ErrUnsupportedFormat, err)
	}
	text, err := client.Text()
	if err != nil {
		return result{}, fmt.Errorf("%w: ocr failed: %v", domain.ErrUnsupportedFormat, err)
	}

	return result{markdown: text, plain: text, method: "ocr"}, nil
}
