package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
)

// fakeService — сервис вычислений, отвечающий функцией respond.
type fakeService struct {
	requests []compute.NodeRequest
	respond  func(req compute.NodeRequest) (*compute.NodeResponse, error)
}

func (f *fakeService) ExecuteNode(_ context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
	f.requests = append(f.requests, req)
	return f.respond(req)
}

func (f *fakeService) ExecuteFlow(context.Context, string, map[string]any) (*compute.FlowResponse, error) {
	return nil, compute.ErrUnsupported
}

func respondWith(outputs map[string]any) *fakeService {
	return &fakeService{respond: func(compute.NodeRequest) (*compute.NodeResponse, error) {
		return compute.Success(outputs), nil
	}}
}

func newExec(t *testing.T, svc compute.Service, typeID string, settings map[string]any) (Executor, *Context) {
	t.Helper()

	cat := catalog.Default()
	nt, ok := cat.NodeType(typeID)
	require.True(t, ok, "unknown type %s", typeID)

	node := domain.NodeInstance{ID: "n1", TypeID: typeID, Settings: settings}
	e, ok := DefaultRegistry(svc, nil).Create(node.ID, node, nt, nil)
	require.True(t, ok)

	ec, err := NewContext("flow-1", node, nt, nil)
	require.NoError(t, err)
	return e, ec
}

// --- MergeSettings Tests ---

func TestMergeSettings(t *testing.T) {
	defaults := map[string]any{"model": "gpt-3.5-turbo", "temperature": 0.7, "max_tokens": 1024}
	instance := map[string]any{"model": "gpt-4", "temperature": 0.0}

	merged, err := MergeSettings(defaults, instance)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", merged["model"])
	assert.Equal(t, 0.0, merged["temperature"])
	assert.Equal(t, 1024, merged["max_tokens"])

	assert.Equal(t, "gpt-3.5-turbo", defaults["model"], "defaults must not be mutated")
}

func TestMergeSettings_ExplicitEmptyWins(t *testing.T) {
	defaults := map[string]any{
		"system_prompt": "You are a helpful assistant.",
		"max_tokens":    1024,
		"extra":         map[string]any{"user": "bot", "seed": 1},
	}
	instance := map[string]any{
		"system_prompt": "",
		"max_tokens":    0,
		"extra":         map[string]any{"user": ""},
	}

	merged, err := MergeSettings(defaults, instance)
	require.NoError(t, err)

	assert.Equal(t, "", merged["system_prompt"])
	assert.Equal(t, 0, merged["max_tokens"])
	assert.Equal(t, map[string]any{"user": "", "seed": 1}, merged["extra"])

	assert.Equal(t, "You are a helpful assistant.", defaults["system_prompt"])
	assert.Equal(t, map[string]any{"user": "bot", "seed": 1}, defaults["extra"], "nested defaults must not be mutated")
}

func TestMergeSettings_Empty(t *testing.T) {
	merged, err := MergeSettings(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
}

func TestNewContext(t *testing.T) {
	nt, _ := catalog.Default().NodeType(catalog.TypeOpenAIChat)
	node := domain.NodeInstance{ID: "ai", TypeID: catalog.TypeOpenAIChat, Settings: map[string]any{"model": "gpt-4o"}}

	ec, err := NewContext("f", node, nt, map[string]any{"input": "hi"})
	require.NoError(t, err)

	assert.Equal(t, "f", ec.FlowID)
	assert.Equal(t, "ai", ec.NodeID)
	assert.Equal(t, catalog.TypeOpenAIChat, ec.TypeID)
	assert.Equal(t, "gpt-4o", ec.Settings["model"])
	assert.Equal(t, catalog.DefaultSystemPrompt, ec.Settings["system_prompt"])
	assert.Equal(t, "hi", ec.Inputs["input"])
}

// --- Registry Tests ---

func TestRegistry_Create(t *testing.T) {
	r := DefaultRegistry(respondWith(nil), nil)

	e, ok := r.Create("n", domain.NodeInstance{TypeID: catalog.TypeOpenAIChat}, domain.NodeType{}, nil)
	require.True(t, ok)
	assert.IsType(t, &AIChat{}, e)

	e, ok = r.Create("n", domain.NodeInstance{TypeID: "chat-input"}, domain.NodeType{}, nil)
	require.True(t, ok)
	assert.IsType(t, &InputCapture{}, e)

	_, ok = r.Create("n", domain.NodeInstance{TypeID: "mystery"}, domain.NodeType{}, nil)
	assert.False(t, ok)

	_, err := r.Get("n", domain.NodeInstance{TypeID: "mystery"}, domain.NodeType{}, nil)
	assert.ErrorIs(t, err, ErrExecutorNotFound)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry(respondWith(nil), nil)
	r.Register("x", NewAIChat)
	r.Register("x", NewGeneric)

	e, ok := r.Create("n", domain.NodeInstance{TypeID: "x"}, domain.NodeType{}, nil)
	require.True(t, ok)
	assert.IsType(t, &Generic{}, e)
}

func TestRegistry_HasTypes(t *testing.T) {
	r := DefaultRegistry(respondWith(nil), nil)

	assert.True(t, r.Has(catalog.TypeTelegramMessage))
	assert.True(t, r.Has("chat-input"))
	assert.False(t, r.Has("mystery"))
	assert.Len(t, r.Types(), 7)
}

// --- Generic / Base Tests ---

func TestGeneric_Execute(t *testing.T) {
	svc := respondWith(map[string]any{"result": 42})
	r := DefaultRegistry(svc, nil)

	var updates []string
	node := domain.NodeInstance{ID: "g", TypeID: "custom", Settings: map[string]any{"k": "v"}}
	e := r.Generic(node.ID, node, domain.NodeType{}, func(_ domain.ExecutionStatus, msg string) {
		updates = append(updates, msg)
	})

	ec, err := NewContext("f", node, domain.NodeType{}, map[string]any{"input": "x"})
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), ec)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 42, res.Outputs["result"])
	assert.Contains(t, res.Metadata, "execution_time_ms")
	assert.NotEmpty(t, updates)

	require.Len(t, svc.requests, 1)
	assert.Equal(t, "custom", svc.requests[0].TypeID)
	assert.Equal(t, "v", svc.requests[0].Settings["k"])
}

func TestBase_ComputeError(t *testing.T) {
	svc := &fakeService{respond: func(compute.NodeRequest) (*compute.NodeResponse, error) {
		return nil, compute.ErrRequest
	}}
	e, ec := newExec(t, svc, catalog.TypeChatInput, nil)
	ec.Inputs = map[string]any{"user_input": "hi"}

	_, err := e.Execute(context.Background(), ec)
	assert.ErrorIs(t, err, compute.ErrRequest)
}

func TestBase_LogicalError(t *testing.T) {
	svc := &fakeService{respond: func(compute.NodeRequest) (*compute.NodeResponse, error) {
		return compute.Failure("OpenAI API error: quota"), nil
	}}
	e, ec := newExec(t, svc, catalog.TypeAIChat, nil)
	ec.Inputs = map[string]any{"input": "hello"}

	_, err := e.Execute(context.Background(), ec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeFailed)
	assert.Equal(t, "OpenAI API error: quota", err.Error())
}

func TestBase_RequiredSettings(t *testing.T) {
	svc := respondWith(nil)
	e, ec := newExec(t, svc, catalog.TypeAIChat, map[string]any{"model": ""})
	ec.Inputs = map[string]any{"input": "hello"}

	_, err := e.Execute(context.Background(), ec)
	require.Error(t, err)

	var vErr *engine.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "model", vErr.Field)
	assert.ErrorIs(t, err, engine.ErrMissingSetting)
	assert.Empty(t, svc.requests, "compute service must not be called")
}

// --- InputCapture Tests ---

func TestInputCapture_Text(t *testing.T) {
	for _, key := range []string{"user_input", "text", "message", "input_text"} {
		t.Run(key, func(t *testing.T) {
			svc := respondWith(map[string]any{"message_data": map[string]any{"input_text": "hi"}})
			e, ec := newExec(t, svc, catalog.TypeChatInput, nil)
			ec.Inputs = map[string]any{key: "hi"}

			_, err := e.Execute(context.Background(), ec)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"user_input": "hi"}, svc.requests[0].Inputs)
		})
	}
}

func TestInputCapture_NoInput(t *testing.T) {
	e, ec := newExec(t, respondWith(nil), catalog.TypeChatInput, nil)
	ec.Inputs = map[string]any{"user_input": "   "}

	_, err := e.Execute(context.Background(), ec)
	require.Error(t, err)
	assert.Equal(t, "node n1: No user input provided", err.Error())
	assert.ErrorIs(t, err, engine.ErrMissingInput)
}

func TestInputCapture_VoiceBytes(t *testing.T) {
	svc := respondWith(map[string]any{"message_data": map[string]any{}})
	e, ec := newExec(t, svc, catalog.TypeVoiceInput, nil)
	ec.Inputs = map[string]any{"audio": []byte("raw-audio"), "content_type": "audio/ogg"}

	_, err := e.Execute(context.Background(), ec)
	require.NoError(t, err)

	got := svc.requests[0].Inputs
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("raw-audio")), got["voice_data"])
	assert.Equal(t, "audio/ogg", got["content_type"])
}

func TestInputCapture_VoiceReader(t *testing.T) {
	svc := respondWith(map[string]any{"message_data": map[string]any{}})

	var updates []string
	nt, _ := catalog.Default().NodeType(catalog.TypeVoiceInput)
	node := domain.NodeInstance{ID: "v", TypeID: catalog.TypeVoiceInput}
	e, ok := DefaultRegistry(svc, nil).Create(node.ID, node, nt, func(_ domain.ExecutionStatus, msg string) {
		updates = append(updates, msg)
	})
	require.True(t, ok)

	ec, err := NewContext("f", node, nt, map[string]any{"voice_data": strings.NewReader("recorded")})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), ec)
	require.NoError(t, err)

	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("recorded")), svc.requests[0].Inputs["voice_data"])
	assert.Contains(t, updates, "Recording...")
}

func TestInputCapture_NoVoice(t *testing.T) {
	e, ec := newExec(t, respondWith(nil), catalog.TypeVoiceInput, nil)
	ec.Inputs = map[string]any{"voice_data": []byte{}}

	_, err := e.Execute(context.Background(), ec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No voice data provided")
}
