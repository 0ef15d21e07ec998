package compute

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/shaiso/nodeflow/internal/domain"
)

// chatInput формирует message_data из текста пользователя.
func chatInput(_ context.Context, req NodeRequest) (*NodeResponse, error) {
	text := getString(req.Inputs, "user_input", "")
	if text == "" {
		return nil, errors.New("No user input provided")
	}

	messageData := map[string]any{
		"session_id": uuid.NewString(),
		"input_text": text,
		"input_type": string(domain.DetermineDataType(text)),
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"metadata": map[string]any{
			"character_count": utf8.RuneCountInString(text),
			"word_count":      len(strings.Fields(text)),
		},
	}

	return Success(map[string]any{"message_data": messageData}, "User input received: "+truncate(text, 50)), nil
}

// voiceInput формирует message_data из записанного аудио (base64).
func voiceInput(_ context.Context, req NodeRequest) (*NodeResponse, error) {
	voice := getString(req.Inputs, "voice_data", "")
	if voice == "" {
		return nil, errors.New("No voice data provided")
	}
	contentType := getString(req.Inputs, "content_type", "audio/webm")

	messageData := map[string]any{
		"session_id":  uuid.NewString(),
		"voice_input": voice,
		"input_type":  "voice",
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"metadata": map[string]any{
			"file_size":    len(voice),
			"content_type": contentType,
		},
	}

	return Success(map[string]any{"message_data": messageData}, "Voice input processed"), nil
}
