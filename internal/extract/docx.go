package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	// docxDefaultBodyPath is where the document body lives in almost every
	// .docx package.
	docxDefaultBodyPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxBodyContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// Word wraps every run of text in <w:t>, usually with attributes such as
// xml:space="preserve". Paragraph boundaries arrive as </w:p>.
var (
	docxRunRe  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	docxParaRe = regexp.MustCompile(`</w:p>`)

	// Override elements list attributes in either order, so both are tried.
	docxBodyPathRes = []*regexp.Regexp{
		regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxBodyContentType) + `"`),
		regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxBodyContentType) + `"[^>]+PartName="([^"]+)"`),
	}
)

// extractDOCX pulls text out of a .docx bulletin. The package is a zip whose
// body is OOXML; text runs are matched directly rather than through lu4p/cat,
// whose docx regex only accepts attribute-free <w:p> tags and comes up empty
// on documents Word actually writes. Paragraph breaks are kept as blank
// lines so the chunker sees the bulletin's own structure.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	bodyPath := docxBodyPath(zr)
	body, err := readZipFile(zr, bodyPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if body == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", bodyPath)
	}

	var paragraphs []string
	for _, chunk := range docxParaRe.Split(string(body), -1) {
		runs := docxRunRe.FindAllStringSubmatch(chunk, -1)
		if len(runs) == 0 {
			continue
		}
		var b strings.Builder
		for i, r := range runs {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(r[1]))
		}
		if p := strings.TrimSpace(b.String()); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// docxBodyPath resolves the body part from [Content_Types].xml, falling back
// to the conventional path when the manifest is absent or unhelpful.
func docxBodyPath(zr *zip.Reader) string {
	manifest, err := readZipFile(zr, contentTypesPath)
	if err != nil || manifest == nil {
		return docxDefaultBodyPath
	}
	for _, re := range docxBodyPathRes {
		if m := re.FindSubmatch(manifest); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDefaultBodyPath
}

// readZipFile returns the named entry's bytes, or nil when the entry is not
// in the archive.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}
