package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

// JSONExporter writes the whole session as one indented document.
type JSONExporter struct{}

func (JSONExporter) Export(session chat.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(session)
}

func (JSONExporter) Extension() string   { return "json" }
func (JSONExporter) ContentType() string { return "application/json" }

// JSONLExporter writes one message per line.
type JSONLExporter struct{}

func (JSONLExporter) Export(session chat.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, msg := range session.Messages {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}
	return nil
}

func (JSONLExporter) Extension() string   { return "jsonl" }
func (JSONLExporter) ContentType() string { return "application/x-ndjson" }
