// Package markdown wraps the markdown converter behind a capability check.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

// Support is the result of the converter capability check, consumed once at
// startup. When support is unavailable, markdown bodies pass through raw and
// the content loader logs a single warning.
type Support struct {
	md     goldmark.Markdown
	reason string
}

// Detect probes for a usable converter.
func Detect() Support {
	// Content pages embed inline HTML; it must survive conversion.
	return Support{md: goldmark.New(goldmark.WithRendererOptions(ghtml.WithUnsafe()))}
}

// Unavailable returns a Support that passes bodies through unmodified,
// carrying the reason conversion is off.
func Unavailable(reason string) Support {
	return Support{reason: reason}
}

// Available reports whether markdown bodies will actually be converted.
func (s Support) Available() bool {
	return s.md != nil
}

// Reason explains an unavailable converter. Empty when available.
func (s Support) Reason() string {
	return s.reason
}

// Convert renders markdown to HTML. Without a converter the source is
// returned unmodified.
func (s Support) Convert(source []byte) ([]byte, error) {
	if s.md == nil {
		return source, nil
	}
	var buf bytes.Buffer
	if err := s.md.Convert(source, &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}
