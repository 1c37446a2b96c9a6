package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// extractPlain covers .txt and .md reference notes. Field notes exported
// from Windows tools carry a BOM and CRLF line endings, both normalized away
// so paragraph detection downstream only has to reason about \n. Invalid
// UTF-8 sequences are replaced rather than rejected so a half-corrupt scan
// still chunks.
func extractPlain(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text, nil
}
