package convert

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

var xmlTagPattern = regexp.MustCompile(`<[^>]*>`)

func (c *Converter) convertDOCX(data []byte) (result, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return result{}, fmt.Errorf("%w: failed to open docx: %v", domain.ErrUnsupportedFormat, err)
	}
	defer doc.Close()

	raw := doc.Editable().GetContent()

	// The content is WordprocessingML. Paragraph closes become line
	// breaks, every other tag is dropped.
	raw = strings.ReplaceAll(raw, "</w:p>", "\n")
	text := xmlTagPattern.ReplaceAllString(raw, "")
	text = xmlUnescape(text)

	return result{markdown: text, plain: text, method: "docx"}, nil
}

func (c *Converter) convertXLSX(data []byte) (result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return result{}, fmt.Errorf("%w: failed to open xlsx: %v", domain.ErrUnsupportedFormat, err)
	}
	defer func() { _ = f.Close() }()

	var md strings.Builder
	var plain strings.Builder

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		md.WriteString("## " + sheet + "\n\n")
		plain.WriteString(sheet + "\n")

		for i, row := range rows {
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
		md.WriteString("\n")
		plain.WriteString("\n")
	}

	return result{markdown: md.String(), plain: plain.String(), method: "xlsx"}, nil
}

// convertPPTX pulls slide text straight out of the OOXML package: each
// ppt/slides/slideN.xml holds runs of <a:t> character data.
func (c *Converter) convertPPTX(data []byte) (result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return result{}, fmt.Errorf("%w: failed to open pptx: %v", domain.ErrUnsupportedFormat, err)
	}

	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	// Lexical order would put slide10 before slide2.
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i]) < slideNumber(slides[j])
	})

	var text strings.Builder
	for _, name := range slides {
		f, err := openZipEntry(zr, name)
		if err != nil {
			continue
		}
		slideText := drawingMLText(f)
		if strings.TrimSpace(slideText) != "" {
			text.WriteString(slideText)
			text.WriteString("\n\n")
		}
	}

	plain := strings.TrimSpace(text.String())
	return result{markdown: plain, plain: plain, method: "pptx"}, nil
}

var slideNamePattern = regexp.MustCompile(`slide(\d+)\.xml$`)

func slideNumber(name string) int {
	m := slideNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func openZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer func() { _ = rc.Close() }()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s not found", name)
}

// drawingMLText collects the character data of every a:t element.
func drawingMLText(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
			if t.Name.Local == "p" {
				out.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return out.String()
}

func xmlUnescape(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	return r.Replace(s)
}
