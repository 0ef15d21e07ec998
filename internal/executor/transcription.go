package executor

import (
	"encoding/base64"
	"maps"

	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
)

const noVoiceInputMessage = "No voice input found from connected nodes. Please connect a Voice Input node."

// Transcription — исполнитель узла распознавания речи.
type Transcription struct {
	*Base
}

// NewTranscription создаёт исполнитель распознавания речи.
func NewTranscription(d Deps) Executor {
	e := &Transcription{}
	e.Base = NewBase(e, d)
	return e
}

// ValidateInputs ищет аудио: voice_data во входах или внутри message_data.
func (e *Transcription) ValidateInputs(ec *Context) error {
	if audio, ok := audioString(ec.Inputs["voice_data"]); ok {
		ec.Inputs = map[string]any{"voice_data": audio, "content_type": defaultAudioContentType}
		return nil
	}

	for _, k := range sortedKeys(ec.Inputs) {
		m, ok := ec.Inputs[k].(map[string]any)
		if !ok {
			continue
		}
		if inner := GetMap(m, "message_data"); inner != nil {
			m = inner
		}
		for _, field := range []string{"voice_data", "voice_input"} {
			audio, ok := audioString(m[field])
			if !ok {
				continue
			}
			inputs := map[string]any{"voice_data": audio, "content_type": defaultAudioContentType}
			if sid := GetString(m, "session_id"); sid != "" {
				inputs["session_id"] = sid
			}
			if meta := GetMap(m, "metadata"); meta != nil {
				if ct := GetString(meta, "content_type"); ct != "" {
					inputs["content_type"] = ct
				}
			}
			ec.Inputs = inputs
			return nil
		}
	}

	return engine.NewValidationError(ec.NodeID, "voice_data", noVoiceInputMessage, engine.ErrMissingInput)
}

func audioString(v any) (string, bool) {
	switch a := v.(type) {
	case string:
		return a, a != ""
	case []byte:
		return base64.StdEncoding.EncodeToString(a), len(a) > 0
	}
	return "", false
}

// PostProcess сводит transcription / text / transcript к каноническому transcription.
func (e *Transcription) PostProcess(ec *Context, raw *compute.NodeResponse) (*domain.ExecutionResult, error) {
	text, ok := "", false
	for _, key := range []string{"transcription", "text", "transcript"} {
		if s, found := raw.Outputs[key].(string); found {
			text, ok = s, true
			break
		}
	}
	if !ok {
		if nested := GetMap(raw.Outputs, "ai_response"); nested != nil {
			text, ok = nested["ai_response"].(string)
		}
	}
	if !ok {
		return nil, &NodeError{
			NodeID:  ec.NodeID,
			Message: "Transcription is missing in node output",
			Err:     ErrInvalidOutput,
		}
	}

	outputs := map[string]any{"transcription": text}
	if sid := GetString(raw.Outputs, "session_id"); sid != "" {
		outputs["session_id"] = sid
	} else if sid := GetString(ec.Inputs, "session_id"); sid != "" {
		outputs["session_id"] = sid
	}

	return domain.NewSuccessResult(outputs, maps.Clone(raw.Metadata)), nil
}
