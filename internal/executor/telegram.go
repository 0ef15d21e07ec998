package executor

import (
	"maps"

	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
)

// TelegramMessage — исполнитель отправки сообщения в Telegram.
//
// access_token и chat_id берутся из настроек, а если их там нет —
// из выходов вышестоящих узлов (в том числе из их metadata).
type TelegramMessage struct {
	*Base
}

// NewTelegramMessage создаёт исполнитель отправки в Telegram.
func NewTelegramMessage(d Deps) Executor {
	e := &TelegramMessage{}
	e.Base = NewBase(e, d)
	return e
}

// ValidateInputs находит текст сообщения и учётные данные бота.
func (e *TelegramMessage) ValidateInputs(ec *Context) error {
	src, ok := ExtractText(ec.Inputs)
	if !ok {
		return engine.NewValidationError(ec.NodeID, "message_text",
			"No valid message text found in inputs", engine.ErrMissingInput)
	}

	settings := maps.Clone(ec.Settings)
	if settings == nil {
		settings = make(map[string]any)
	}

	for _, key := range []string{"access_token", "chat_id"} {
		if !isEmpty(settings[key]) {
			continue
		}
		if v, found := findCredential(ec.Inputs, key); found {
			settings[key] = v
		}
	}

	if isEmpty(settings["access_token"]) {
		return engine.NewValidationError(ec.NodeID, "access_token",
			"No Telegram access_token found. Please configure it in node settings or connect a node that provides it.",
			engine.ErrMissingSetting)
	}
	if isEmpty(settings["chat_id"]) {
		return engine.NewValidationError(ec.NodeID, "chat_id",
			"No Telegram chat_id found. Please configure it in node settings or connect a node that provides it.",
			engine.ErrMissingSetting)
	}

	ec.Settings = settings
	ec.Inputs = map[string]any{"message_text": src.Text}
	return nil
}

// findCredential ищет key в объектах входов и в их metadata.
func findCredential(inputs map[string]any, key string) (any, bool) {
	for _, k := range sortedKeys(inputs) {
		m, ok := inputs[k].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := m[key]; ok && !isEmpty(v) {
			return v, true
		}
		if meta := GetMap(m, "metadata"); meta != nil {
			if v, ok := meta[key]; ok && !isEmpty(v) {
				return v, true
			}
		}
	}
	return nil, false
}

// PostProcess нормализует квитанцию отправки.
func (e *TelegramMessage) PostProcess(_ *Context, raw *compute.NodeResponse) (*domain.ExecutionResult, error) {
	receipt := GetMap(raw.Outputs, "telegram_result")
	if receipt == nil {
		receipt = maps.Clone(raw.Outputs)
	}

	result := map[string]any{
		"success": GetBool(receipt, "success", true),
	}
	for _, key := range []string{"chat_id", "message_sent", "timestamp"} {
		if v, ok := receipt[key]; ok {
			result[key] = v
		}
	}
	if apiResp := GetMap(receipt, "response"); apiResp != nil {
		if msg := GetMap(apiResp, "result"); msg != nil {
			if id, ok := msg["message_id"]; ok {
				result["message_id"] = id
			}
		}
	}

	return domain.NewSuccessResult(map[string]any{"telegram_result": result}, maps.Clone(raw.Metadata)), nil
}
