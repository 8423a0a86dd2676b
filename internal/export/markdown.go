package export

import (
	"fmt"
	"io"
	"time"

	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

// MarkdownExporter writes a readable transcript.
type MarkdownExporter struct{}

func (MarkdownExporter) Export(session chat.Session, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", session.Title)
	_, _ = fmt.Fprintf(w, "**Created:** %s  \n", session.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(session.Messages))
	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range session.Messages {
		speaker := "You"
		if msg.Role == chat.RoleAssistant {
			speaker = "Assistant"
			if msg.Agent != "" {
				speaker = msg.Agent
			}
		}
		_, _ = fmt.Fprintf(w, "**%s** (%s)\n\n%s\n\n", speaker, msg.Timestamp.Format(time.RFC3339), msg.Content)

		for _, att := range msg.Attachments {
			_, _ = fmt.Fprintf(w, "- 📎 %s (%s)\n", att.Name, att.Kind)
		}
		if len(msg.Attachments) > 0 {
			_, _ = fmt.Fprintln(w)
		}

		if i < len(session.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

func (MarkdownExporter) Extension() string   { return "md" }
func (MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }
