// Package extract provides text extraction from reference material formats:
// extension bulletins and labels as PDF, agronomy guides as DOCX/ODT/RTF,
// trial data as XLSX, and plain text or markdown notes.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lu4p/cat"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// For plain text files (.txt, .md, .rst), content is returned as-is (UTF-8 validated).
// For PDF, DOCX, ODT, RTF, and Excel, text is extracted from the binary format.
// Returns an error if the file cannot be read or the format is unsupported.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".odt", ".rtf":
		text, err := cat.FromBytes(content)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", strings.TrimPrefix(ext, "."), err)
		}
		return strings.TrimSpace(text), nil
	case ".xlsx":
		return extractExcel(content)
	case ".txt", ".md", ".rst", "":
		return extractPlain(content)
	default:
		// Unknown extension: treat as plain text
		return extractPlain(content)
	}
}

// Supported reports whether the extension maps to a known extractor.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".txt", ".md", ".rst":
		return true
	}
	return false
}
