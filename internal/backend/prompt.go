package backend

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/taporibrain/internal/model/agent"
)

// systemPrompt builds the instructions the model receives for a.
func systemPrompt(a agent.Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the %s of TaporiBrain, an AGI assistant proudly made in India.\n\n", a.Name, strings.ToLower(a.Title))
	fmt.Fprintf(&b, "Tone: %s.\n", a.Tone)
	if len(a.Expertise) > 0 {
		fmt.Fprintf(&b, "Expertise: %s.\n", strings.Join(a.Expertise, ", "))
	}
	b.WriteString("\nGuidance:\n- ")
	b.WriteString(a.PromptHint)
	b.WriteString("\n- Format answers in Markdown; tables and fenced code blocks render in the client.")
	b.WriteString("\n- If the user attached files, you only know their names and sizes, say so instead of guessing their content.")
	return b.String()
}

// describeAttachments renders uploaded files as a note appended to the query.
func describeAttachments(files []Attachment) string {
	if len(files) == 0 {
		return ""
	}
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("%s (%s, %d bytes)", f.Name, f.ContentType, f.Size))
	}
	return "\n\n[Attached: " + strings.Join(parts, "; ") + "]"
}
