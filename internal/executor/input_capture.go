package executor

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
)

// Ключи, из которых InputCapture берёт сырой ввод.
var (
	textInputKeys  = []string{"user_input", "text", "message", "input_text"}
	voiceInputKeys = []string{"voice_data", "audio"}
)

const defaultAudioContentType = "audio/webm"

// InputCapture — исполнитель trigger-узлов, принимающих ввод пользователя.
//
// Текстовый режим (chat_input) сводит user_input/text/message/input_text
// к каноническому ключу user_input. Голосовой режим (voice_input) сводит
// voice_data/audio ([]byte, io.Reader или base64-строка) к voice_data в base64.
// io.Reader читается до конца записи; это и есть ожидание ввода.
type InputCapture struct {
	*Base
	voice bool
}

// NewInputCapture создаёт исполнитель ввода; режим определяется типом узла.
func NewInputCapture(d Deps) Executor {
	e := &InputCapture{voice: d.NodeType.ID == catalog.TypeVoiceInput}
	e.Base = NewBase(e, d)
	return e
}

// ValidateInputs нормализует ввод пользователя.
func (e *InputCapture) ValidateInputs(ec *Context) error {
	if e.voice {
		return e.captureVoice(ec)
	}
	return e.captureText(ec)
}

func (e *InputCapture) captureText(ec *Context) error {
	for _, key := range textInputKeys {
		if s, ok := ec.Inputs[key].(string); ok && strings.TrimSpace(s) != "" {
			ec.Inputs = map[string]any{"user_input": s}
			return nil
		}
	}
	return engine.NewValidationError(ec.NodeID, "user_input", "No user input provided", engine.ErrMissingInput)
}

func (e *InputCapture) captureVoice(ec *Context) error {
	contentType := GetString(ec.Inputs, "content_type")
	if contentType == "" {
		contentType = defaultAudioContentType
	}

	for _, key := range voiceInputKeys {
		raw, ok := ec.Inputs[key]
		if !ok || raw == nil {
			continue
		}

		var audio []byte
		switch v := raw.(type) {
		case string:
			if v == "" {
				continue
			}
			ec.Inputs = map[string]any{"voice_data": v, "content_type": contentType}
			return nil
		case []byte:
			audio = v
		case io.Reader:
			e.Report(domain.StatusRunning, "Recording...")
			data, err := io.ReadAll(v)
			if err != nil {
				return engine.NewValidationError(ec.NodeID, key,
					fmt.Sprintf("Failed to read voice data: %v", err), err)
			}
			audio = data
		default:
			continue
		}

		if len(audio) == 0 {
			continue
		}
		ec.Inputs = map[string]any{
			"voice_data":   base64.StdEncoding.EncodeToString(audio),
			"content_type": contentType,
		}
		return nil
	}

	return engine.NewValidationError(ec.NodeID, "voice_data", "No voice data provided", engine.ErrMissingInput)
}
