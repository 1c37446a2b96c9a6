// Package labreport parses laboratory analysis files into the analyte map an
// input snapshot carries. Labs ship results as spreadsheets or CSV with one
// analyte per row: a name column followed by a numeric value column.
package labreport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// numericValue pulls the leading number out of a value cell, tolerating
// trailing units like "12.5 ppm".
var numericValue = regexp.MustCompile(`^\s*(-?[0-9]+(?:\.[0-9]+)?)`)

// Parse reads a lab report by extension. Supported formats are .xlsx and
// .csv.
func Parse(content []byte, ext string) (map[string]float64, error) {
	switch strings.ToLower(ext) {
	case ".xlsx":
		return parseXLSX(content)
	case ".csv":
		return parseCSV(content)
	default:
		return nil, fmt.Errorf("unsupported lab report format %q", ext)
	}
}

// ParseFile reads a lab report from disk, dispatching on the file extension.
func ParseFile(path string, content []byte) (map[string]float64, error) {
	return Parse(content, filepath.Ext(path))
}

func parseXLSX(content []byte) (map[string]float64, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open lab report: %w", err)
	}
	defer f.Close()

	analytes := make(map[string]float64)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			addRow(analytes, row)
		}
	}
	if len(analytes) == 0 {
		return nil, fmt.Errorf("no analyte rows found")
	}
	return analytes, nil
}

func parseCSV(content []byte) (map[string]float64, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	analytes := make(map[string]float64)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read lab report csv: %w", err)
		}
		addRow(analytes, row)
	}
	if len(analytes) == 0 {
		return nil, fmt.Errorf("no analyte rows found")
	}
	return analytes, nil
}

// addRow records a name/value pair when the row has one. Header rows and
// rows without a numeric value column are skipped.
func addRow(analytes map[string]float64, row []string) {
	if len(row) < 2 {
		return
	}
	name := normalizeAnalyte(row[0])
	if name == "" {
		return
	}
	m := numericValue.FindStringSubmatch(row[1])
	if m == nil {
		return
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return
	}
	analytes[name] = value
}

// normalizeAnalyte lowercases the analyte name and folds separators to
// underscores so "Nitrogen (NO3-N)" and "nitrogen no3 n" key identically.
func normalizeAnalyte(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	var sb strings.Builder
	lastSep := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastSep = false
		default:
			if !lastSep && sb.Len() > 0 {
				sb.WriteByte('_')
				lastSep = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}
