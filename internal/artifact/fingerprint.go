// Package artifact persists build outputs incrementally: unchanged artifacts
// are left alone, changed ones are rewritten, and large file sources are
// symlinked instead of copied.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short, stable content address for a blob of generated
// content. Equal content yields equal fingerprints across runs; the writer
// uses them to skip repeated writes of identical inline content within a run.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:8])
}
