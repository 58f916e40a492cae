package convert

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

func (c *Converter) convertHTML(data []byte) (result, error) {
	markdown, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return result{}, fmt.Errorf("%w: failed to convert html: %v", domain.ErrUnsupportedFormat, err)
	}

	plain := markdown
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data)); err == nil {
		doc.Find("script, style").Remove()
		plain = normalizeWhitespace(doc.Text())
	}

	return result{markdown: markdown, plain: plain, method: "html"}, nil
}

func (c *Converter) convertCSV(data []byte) (result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return result{}, fmt.Errorf("%w: failed to parse csv: %v", domain.ErrUnsupportedFormat, err)
	}

	var md strings.Builder
	var plain strings.Builder
	for i, row := range records {
		md.WriteString("| " + strings.Join(row, " | ") + " |\n")
		plain.WriteString(strings.Join(row, "\t") + "\n")
		if i == 0 {
			seps := make([]string, len(row))
			for j := range seps {
				seps[j] = "---"
			}
			md.WriteString("| " + strings.Join(seps, " | ") + " |\n")
		}
	}

	return result{markdown: md.String(), plain: plain.String(), method: "csv"}, nil
}

func normalizeWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
