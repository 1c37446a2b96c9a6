package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Nitrogen deficiency\nsymptoms"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Nitrogen deficiency\nsymptoms" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("corn\x80field"), ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "corn�field" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_unknownExtensionFallsBackToPlain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("raw field notes"), ".xyz")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "raw field notes" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Analyte")
	f.SetCellValue("Sheet1", "A2", "Nitrogen")
	f.SetCellValue("Sheet1", "B2", "12.5")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	e := NewExtractor()
	got, err := e.ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Sheet1\nAnalyte\nNitrogen\t12.5" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_excelMultiSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Rates")
	if _, err := f.NewSheet("Trials"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Trials", "A1", "Plot")
	f.SetCellValue("Trials", "B1", "Yield")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	e := NewExtractor()
	got, err := e.ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Sheet1\nRates\n\nTrials\nPlot\tYield" {
		t.Errorf("got %q", got)
	}
}

// minimalDocx builds a .docx zip with the text wrapped in <w:t> nodes, with
// run attributes like real authoring tools emit.
func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p w:rsidR="00A12345"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes(minimalDocx("Apply at V6 growth stage"), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Apply at V6 growth stage" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxParagraphBreaks(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p w:rsidR="00A1"><w:r><w:t>Scout weekly after emergence.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">Treat only past</w:t></w:r><w:r><w:t>threshold.</w:t></w:r></w:p>` +
		`</w:body></w:document>`))
	_ = w.Close()

	e := NewExtractor()
	got, err := e.ExtractBytes(buf.Bytes(), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Scout weekly after emergence.\n\nTreat only past threshold." {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainStripsBOMAndCRLF(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("\xef\xbb\xbfRow one\r\nRow two"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Row one\nRow two" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxCustomDocumentPath(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	ct, _ := w.Create("[Content_Types].xml")
	_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override PartName="/word/document2.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`))
	fw, _ := w.Create("word/document2.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Bulletin body</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()

	e := NewExtractor()
	got, err := e.ExtractBytes(buf.Bytes(), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Bulletin body" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_plainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("Scouting notes"), 0600); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor()
	got, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Scouting notes" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	e := NewExtractor()
	if _, err := e.Extract("/nonexistent/bulletin.pdf"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".txt", ".md", ".PDF"} {
		if !Supported(ext) {
			t.Errorf("Supported(%q) = false", ext)
		}
	}
	for _, ext := range []string{".exe", ".png", ".zip", ""} {
		if Supported(ext) {
			t.Errorf("Supported(%q) = true", ext)
		}
	}
}
