package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/model/agent"
	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

// promptHistoryLimit is how many past messages reach the model.
const promptHistoryLimit = 10

// Attachment describes an uploaded file without its body.
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
}

// Request is everything a responder needs for one reply.
type Request struct {
	Agent       agent.Agent
	History     []chat.Message
	Message     string
	Attachments []Attachment
}

// Responder produces the assistant's reply.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// EchoResponder answers without a model. It keeps the dev backend usable
// offline and makes replies deterministic in tests.
type EchoResponder struct{}

// Respond implements Responder.
func (EchoResponder) Respond(_ context.Context, req Request) (string, error) {
	message := req.Agent.StripCommand(req.Message)

	var b strings.Builder
	switch req.Agent.ID {
	case "code":
		b.WriteString("Here is a starting point:\n\n```text\n")
		b.WriteString(message)
		b.WriteString("\n```\n")
	case "plan":
		b.WriteString("A plan for **")
		b.WriteString(message)
		b.WriteString("**:\n\n1. Clarify the goal\n2. List the steps\n3. Start with the smallest one\n")
	case "summarize":
		b.WriteString("Summary:\n\n- ")
		b.WriteString(firstSentence(message))
		b.WriteString("\n")
	default:
		if message != "" {
			b.WriteString("You said: ")
			b.WriteString(message)
			b.WriteString("\n")
		}
	}

	if n := len(req.Attachments); n > 0 {
		fmt.Fprintf(&b, "\nI received %d file(s):\n\n", n)
		for _, f := range req.Attachments {
			fmt.Fprintf(&b, "- %s (%d bytes)\n", f.Name, f.Size)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func firstSentence(text string) string {
	if idx := strings.IndexAny(text, ".!?\n"); idx >= 0 {
		return strings.TrimSpace(text[:idx+1])
	}
	return strings.TrimSpace(text)
}

// ModelResponder asks an LLM through an eino chain.
type ModelResponder struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	logger *zap.Logger
}

// NewModelResponder compiles the prompt chain around chatModel.
func NewModelResponder(ctx context.Context, chatModel model.BaseChatModel, logger *zap.Logger) (*ModelResponder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &ModelResponder{chain: runnable, logger: logger}, nil
}

// Respond implements Responder.
func (r *ModelResponder) Respond(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"system":  systemPrompt(req.Agent),
		"history": historyMessages(req.History),
		"query":   req.Agent.StripCommand(req.Message) + describeAttachments(req.Attachments),
	}

	response, err := r.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}

	r.logger.Debug("model replied", zap.String("agent", req.Agent.ID), zap.Int("length", len(response.Content)))
	return response.Content, nil
}

func historyMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	start := 0
	if len(messages) > promptHistoryLimit {
		start = len(messages) - promptHistoryLimit
	}

	history := make([]*schema.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
