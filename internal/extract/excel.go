package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel flattens a workbook to tab-separated lines. Rate tables and
// trial summaries arrive as xlsx, one sheet per trial or product, so each
// sheet is emitted under its own name and separated by a blank line. The
// chunker then treats every sheet as its own paragraph block.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var blocks []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		var b strings.Builder
		b.WriteString(sheet)
		b.WriteByte('\n')
		empty := true
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			empty = false
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if !empty {
			blocks = append(blocks, strings.TrimSpace(b.String()))
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}
