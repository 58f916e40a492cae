package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

// supportedExts lists every format the converter can turn into text.
var supportedExts = map[string]bool{
	".pdf":   true,
	".docx":  true,
	".pptx":  true,
	".xlsx":  true,
	".html":  true,
	".htm":   true,
	".xhtml": true,
	".txt":   true,
	".md":    true,
	".adoc":  true,
	".csv":   true,
	".json":  true,
	".xml":   true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".tiff":  true,
	".bmp":   true,
	".webp":  true,
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tiff": true, ".bmp": true, ".webp": true,
}

// complexExts need heavy parsing and dominate time estimates.
var complexExts = map[string]bool{
	".pdf": true, ".docx": true, ".pptx": true, ".xlsx": true,
	".png": true, ".jpg": true, ".jpeg": true, ".tiff": true, ".bmp": true,
}

// result is a document rendered in both output forms.
type result struct {
	markdown string
	plain    string
	method   string
}

// Converter turns raw document bytes into canonical text. It produces a
// markdown and a plain-text rendering and keeps the markdown one only
// when it actually contains table structure.
type Converter struct {
	OCREnabled bool
}

func New() *Converter {
	return &Converter{OCREnabled: true}
}

func (c *Converter) Supported(name string) bool {
	return Supported(name)
}

// Supported reports whether the file extension has a conversion path.
func Supported(name string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(name))]
}

// IsComplex reports whether the file needs heavy conversion work.
func IsComplex(name string) bool {
	return complexExts[strings.ToLower(filepath.Ext(name))]
}

// Convert produces the canonical Document for one file.
func (c *Converter) Convert(ctx context.Context, ref domain.DocumentRef, data []byte) (domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(ref.Name))
	if !supportedExts[ext] {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ref.Name)
	}
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}

	var res result
	var err error
	switch {
	case ext == ".pdf":
		res, err = c.convertPDF(ctx, data)
	case ext == ".docx":
		res, err = c.convertDOCX(data)
	case ext == ".pptx":
		res, err = c.convertPPTX(data)
	case ext == ".xlsx":
		res, err = c.convertXLSX(data)
	case ext == ".html" || ext == ".htm" || ext == ".xhtml":
		res, err = c.convertHTML(data)
	case ext == ".csv":
		res, err = c.convertCSV(data)
	case imageExts[ext]:
		res, err = c.convertImage(data)
	default:
		// txt, md, adoc, json, xml pass through unchanged.
		text := string(data)
		res = result{markdown: text, plain: text, method: "direct"}
	}
	if err != nil {
		return domain.Document{}, err
	}

	content := res.plain
	form := "text"
	if hasTables(res.markdown) {
		content = res.markdown
		form = "markdown"
	}
	if strings.TrimSpace(content) == "" {
		return domain.Document{}, fmt.Errorf("%w: %s produced no text", domain.ErrUnsupportedFormat, ref.Name)
	}

	source := ref.Path
	if source == "" {
		source = ref.Name
	}

	return domain.Document{
		ID:               uuid.NewString(),
		Content:          content,
		Source:           source,
		FileName:         ref.Name,
		FileType:         strings.TrimPrefix(ext, "."),
		ConversionMethod: res.method,
		Created:          time.Now(),
		Metadata: map[string]interface{}{
			"content_form": form,
		},
	}, nil
}

// hasTables decides whether the markdown rendering carries real table
// structure worth preserving over plain text.
func hasTables(markdown string) bool {
	return strings.Contains(markdown, "|") && strings.Contains(markdown, "---")
}
