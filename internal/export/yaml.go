package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

// YAMLExporter writes the session as YAML.
type YAMLExporter struct{}

func (YAMLExporter) Export(session chat.Session, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	enc.SetIndent(2)
	return enc.Encode(session)
}

func (YAMLExporter) Extension() string   { return "yaml" }
func (YAMLExporter) ContentType() string { return "application/yaml" }
