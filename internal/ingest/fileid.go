package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// FileSourceID derives a stable source ID from a file path so repeated
// ingests of the same file replace the earlier source instead of piling up
// duplicates.
func FileSourceID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:16])
}
