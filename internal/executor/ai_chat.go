package executor

import (
	"fmt"
	"maps"

	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
)

const noTextInputMessage = "No valid string input found from connected nodes. Please connect a node that outputs string data."

// AIChat — исполнитель узлов AI-чата (ai-chat, simple-openai-chat, simple-deepseek-chat).
//
// Результат всегда содержит ровно одну строку ai_response, её версию без
// разметки plain_text и session_id. Использование токенов переносится в metadata.
type AIChat struct {
	*Base
}

// NewAIChat создаёт исполнитель AI-чата.
func NewAIChat(d Deps) Executor {
	e := &AIChat{}
	e.Base = NewBase(e, d)
	return e
}

// ValidateInputs проверяет model и system_prompt и находит текст запроса.
func (e *AIChat) ValidateInputs(ec *Context) error {
	for _, name := range []string{"model", "system_prompt"} {
		if isEmpty(ec.Settings[name]) {
			return engine.NewValidationError(ec.NodeID, name,
				fmt.Sprintf("Missing required setting: %s", name), engine.ErrMissingSetting)
		}
	}
	if err := e.Base.ValidateInputs(ec); err != nil {
		return err
	}

	src, ok := ExtractText(ec.Inputs)
	if !ok {
		return engine.NewValidationError(ec.NodeID, "input_text", noTextInputMessage, engine.ErrMissingInput)
	}

	inputs := map[string]any{
		"input_text":   src.Text,
		"input_source": src.Source,
	}
	if src.SessionID != "" {
		inputs["session_id"] = src.SessionID
	}
	if src.InputType != "" {
		inputs["input_type"] = src.InputType
	}
	ec.Inputs = inputs
	return nil
}

// PostProcess сводит response / ai_response / ai_response.ai_response
// к каноническому ai_response.
func (e *AIChat) PostProcess(ec *Context, raw *compute.NodeResponse) (*domain.ExecutionResult, error) {
	metadata := maps.Clone(raw.Metadata)
	if metadata == nil {
		metadata = make(map[string]any)
	}

	text, nested, ok := findResponse(raw.Outputs)
	if !ok {
		return nil, &NodeError{
			NodeID:  ec.NodeID,
			Message: "AI response is missing in node output",
			Err:     ErrInvalidOutput,
		}
	}

	sessionID := GetString(raw.Outputs, "session_id")
	if nested != nil {
		if sid := GetString(nested, "session_id"); sid != "" {
			sessionID = sid
		}
		if meta := GetMap(nested, "metadata"); meta != nil {
			for k, v := range meta {
				metadata[k] = v
			}
		}
	}
	if sessionID == "" {
		sessionID = GetString(ec.Inputs, "session_id")
	}

	if usage := GetMap(raw.Outputs, "usage"); usage != nil {
		metadata["token_usage"] = usage
	}
	liftTokenUsage(metadata)

	outputs := map[string]any{
		"ai_response": text,
		"plain_text":  StripMarkdown(text),
	}
	if sessionID != "" {
		outputs["session_id"] = sessionID
	}
	if input := GetString(ec.Inputs, "input_text"); input != "" {
		outputs["input_text"] = input
	}

	return domain.NewSuccessResult(outputs, metadata), nil
}

// findResponse ищет текст ответа модели. nested — вложенный объект ai_response,
// если ответ пришёл в таком виде.
func findResponse(outputs map[string]any) (string, map[string]any, bool) {
	switch v := outputs["ai_response"].(type) {
	case string:
		return v, nil, true
	case map[string]any:
		if s, ok := v["ai_response"].(string); ok {
			return s, v, true
		}
		if s, ok := v["response"].(string); ok {
			return s, v, true
		}
	}
	if s, ok := outputs["response"].(string); ok {
		return s, nil, true
	}
	if m, ok := outputs["response"].(map[string]any); ok {
		if s, ok := m["ai_response"].(string); ok {
			return s, m, true
		}
	}
	return "", nil, false
}

// liftTokenUsage собирает счётчики токенов в metadata.token_usage.
func liftTokenUsage(metadata map[string]any) {
	usage, _ := metadata["token_usage"].(map[string]any)
	if usage == nil {
		usage = make(map[string]any)
	}
	for from, to := range map[string]string{
		"input_tokens":  "prompt_tokens",
		"output_tokens": "completion_tokens",
		"total_tokens":  "total_tokens",
	} {
		if v, ok := metadata[from]; ok {
			usage[to] = v
			delete(metadata, from)
		}
	}
	if len(usage) > 0 {
		metadata["token_usage"] = usage
	}
}
