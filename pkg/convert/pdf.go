package convert

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	pdf "github.com/dslipak/pdf"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

func (c *Converter) convertPDF(ctx context.Context, data []byte) (result, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return result{}, fmt.Errorf("%w: failed to open pdf: %v", domain.ErrUnsupportedFormat, err)
	}

	var content strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return result{}, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages rather than failing the document.
			continue
		}
		content.WriteString(text)
		content.WriteString("\n")
	}

	plain := content.String()
	return result{markdown: plain, plain: plain, method: "pdf"}, nil
}
