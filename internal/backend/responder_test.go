package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/taporibrain/internal/model/agent"
	"github.com/zhouzirui/taporibrain/internal/model/chat"
)

type recordingModel struct {
	input []*schema.Message
}

func (m *recordingModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	return schema.AssistantMessage("model reply", nil), nil
}

func (m *recordingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func seedAgent(t *testing.T, id string) agent.Agent {
	t.Helper()
	a, ok := agent.NewMemoryStore(agent.Seed()).FindByID(id)
	require.True(t, ok)
	return a
}

func TestModelResponderBuildsPrompt(t *testing.T) {
	fake := &recordingModel{}
	responder, err := NewModelResponder(context.Background(), fake, nil)
	require.NoError(t, err)

	history := make([]chat.Message, 0, 14)
	for i := 0; i < 7; i++ {
		history = append(history,
			chat.Message{Role: chat.RoleUser, Content: "question"},
			chat.Message{Role: chat.RoleAssistant, Content: "answer"},
		)
	}

	reply, err := responder.Respond(context.Background(), Request{
		Agent:       seedAgent(t, "plan"),
		History:     history,
		Message:     "/plan a launch",
		Attachments: []Attachment{{Name: "brief.pdf", ContentType: "application/pdf", Size: 42}},
	})
	require.NoError(t, err)
	assert.Equal(t, "model reply", reply)

	// system + trimmed history + query
	require.Len(t, fake.input, 1+promptHistoryLimit+1)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Contains(t, fake.input[0].Content, "Strategist")

	query := fake.input[len(fake.input)-1]
	assert.Equal(t, schema.User, query.Role)
	assert.True(t, strings.HasPrefix(query.Content, "a launch"))
	assert.Contains(t, query.Content, "brief.pdf")
}

func TestEchoResponder(t *testing.T) {
	reply, err := EchoResponder{}.Respond(context.Background(), Request{
		Agent:   seedAgent(t, agent.DefaultID),
		Message: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "You said: hello", reply)

	reply, err = EchoResponder{}.Respond(context.Background(), Request{
		Agent:       seedAgent(t, "summarize"),
		Message:     "/summarize First point. Second point.",
		Attachments: []Attachment{{Name: "a.txt", Size: 3}},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "- First point.")
	assert.Contains(t, reply, "a.txt (3 bytes)")
	assert.NotContains(t, reply, "Second point")
}
