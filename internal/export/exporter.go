// Package export writes session transcripts to downloadable formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

// Exporter writes one session in a single format.
type Exporter interface {
	Export(session chat.Session, w io.Writer) error
	Extension() string
	ContentType() string
}

// Formats lists the accepted format names.
var Formats = []string{"md", "json", "jsonl", "yaml"}

// NewExporter returns the exporter for format.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "md", "markdown":
		return MarkdownExporter{}, nil
	case "json":
		return JSONExporter{}, nil
	case "jsonl":
		return JSONLExporter{}, nil
	case "yaml", "yml":
		return YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(Formats, ", "))
	}
}

// Filename builds a download name from the session title.
func Filename(session chat.Session, e Exporter) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(session.Title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "session"
	}
	return name + "." + e.Extension()
}
