package site

// Feature 路线图上的一项功能
type Feature struct {
	Title       string
	Description string
	Status      string
}

// Section 路线图的一个阶段
type Section struct {
	Title       string
	Description string
	Features    []Feature
}

// Roadmap 返回静态的产品路线图
func Roadmap() []Section {
	return []Section{
		{
			Title:       "Now",
			Description: "Currently available features",
			Features: []Feature{
				{Title: "Multi-Session Chat", Description: "Create, manage, and switch between multiple chat sessions", Status: "live"},
				{Title: "File & Image Upload", Description: "Attach files and images to your messages", Status: "live"},
				{Title: "Voice Recording", Description: "Hold-to-record voice messages with WebM support", Status: "live"},
				{Title: "Real-time Streaming", Description: "Stream responses in real-time from AGI agents", Status: "live"},
				{Title: "Dark/Light Mode", Description: "Beautiful glass morphism design with theme switching", Status: "live"},
				{Title: "Admin Dashboard", Description: "Monitor system stats and configure settings", Status: "live"},
			},
		},
		{
			Title:       "Next",
			Description: "Coming soon features",
			Features: []Feature{
				{Title: "Slash Commands", Description: "Quick commands like /code, /plan, /summarize", Status: "development"},
				{Title: "WebSocket Integration", Description: "Real-time bidirectional communication", Status: "development"},
				{Title: "Session Memory Visualization", Description: "Visual representation of conversation context", Status: "planning"},
				{Title: "Text-to-Speech", Description: "Voice replies with natural TTS playback", Status: "planning"},
				{Title: "Hindi/English Toggle", Description: "Multi-language support for Indian users", Status: "planning"},
				{Title: "Agent Personalities", Description: "Choose different AI personalities and expertise", Status: "planning"},
			},
		},
		{
			Title:       "Later",
			Description: "Future possibilities",
			Features: []Feature{
				{Title: "Plugin Ecosystem", Description: "Third-party integrations and custom plugins", Status: "research"},
				{Title: "Collaborative Sessions", Description: "Share and collaborate on chat sessions", Status: "research"},
				{Title: "Mobile App", Description: "Native iOS and Android applications", Status: "research"},
				{Title: "API Access", Description: "Public API for developers and integrations", Status: "research"},
				{Title: "Custom Model Training", Description: "Train specialized models for specific use cases", Status: "research"},
				{Title: "Enterprise Features", Description: "Team management, analytics, and enterprise SSO", Status: "research"},
			},
		},
	}
}
