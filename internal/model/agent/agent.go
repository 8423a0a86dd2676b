package agent

import "strings"

// Agent is one of the backend's specialised responders. The client only
// ever sees its Name.
type Agent struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Tone       string   `json:"tone"`
	PromptHint string   `json:"promptHint"`
	Command    string   `json:"command,omitempty"`  // slash command that selects the agent
	Keywords   []string `json:"keywords,omitempty"` // words that route a message here
	Expertise  []string `json:"expertise,omitempty"`
}

// DefaultID is the general purpose agent.
const DefaultID = "core"

// Seed provides the agents the development backend routes between.
func Seed() []Agent {
	return []Agent{
		{
			ID:         DefaultID,
			Name:       "TaporiCore",
			Title:      "General assistant",
			Tone:       "friendly, direct, a little street-smart",
			PromptHint: "Answer plainly, prefer short paragraphs and bullet lists, and ask one clarifying question when the request is ambiguous.",
			Expertise:  []string{"general knowledge", "conversation"},
		},
		{
			ID:         "code",
			Name:       "CodeSmith",
			Title:      "Programming partner",
			Tone:       "precise, pragmatic",
			PromptHint: "Reply with working code in fenced blocks, name the language, and explain only the non-obvious lines.",
			Command:    "/code",
			Keywords:   []string{"code", "bug", "function", "compile", "error", "golang", "python", "javascript", "api"},
			Expertise:  []string{"software engineering", "debugging"},
		},
		{
			ID:         "plan",
			Name:       "Strategist",
			Title:      "Planner",
			Tone:       "structured, calm",
			PromptHint: "Break the goal into numbered steps with owners and rough durations, then list the main risks.",
			Command:    "/plan",
			Keywords:   []string{"plan", "roadmap", "schedule", "steps", "strategy", "milestone"},
			Expertise:  []string{"planning", "project management"},
		},
		{
			ID:         "summarize",
			Name:       "Summarizer",
			Title:      "Condenser",
			Tone:       "brief, neutral",
			PromptHint: "Summarise the input in at most five bullet points and finish with a one-line takeaway.",
			Command:    "/summarize",
			Keywords:   []string{"summarize", "summary", "tl;dr", "tldr", "recap"},
			Expertise:  []string{"summarisation"},
		},
	}
}

// HasCommand reports whether message starts with the agent's slash command.
func (a Agent) HasCommand(message string) bool {
	if a.Command == "" {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(message))
	return text == a.Command || strings.HasPrefix(text, a.Command+" ") || strings.HasPrefix(text, a.Command+"\n")
}

// Matches reports whether message addresses this agent, either through its
// slash command or one of its keywords.
func (a Agent) Matches(message string) bool {
	if a.HasCommand(message) {
		return true
	}
	text := strings.ToLower(message)
	for _, kw := range a.Keywords {
		if containsWord(text, kw) {
			return true
		}
	}
	return false
}

// StripCommand removes a leading slash command from message.
func (a Agent) StripCommand(message string) string {
	trimmed := strings.TrimSpace(message)
	if !a.HasCommand(trimmed) {
		return trimmed
	}
	return strings.TrimSpace(trimmed[len(a.Command):])
}

func containsWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!' || r == ':' || r == '\n'
	}) {
		if field == word {
			return true
		}
	}
	return false
}
