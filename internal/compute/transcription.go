package compute

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultOpenAIBaseURL      = "https://api.openai.com/v1"
	defaultTranscriptionModel = "gpt-4o-transcribe"
)

// Transcriber распознаёт речь в аудиозаписи.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// OpenAITranscriberConfig — конфигурация распознавания через OpenAI Audio API.
type OpenAITranscriberConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OpenAITranscriber вызывает POST {base}/audio/transcriptions.
type OpenAITranscriber struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewOpenAITranscriber создаёт клиент распознавания речи.
func NewOpenAITranscriber(cfg OpenAITranscriberConfig) *OpenAITranscriber {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultTranscriptionModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &OpenAITranscriber{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		http:    cfg.HTTPClient,
	}
}

// Model возвращает имя модели распознавания.
func (t *OpenAITranscriber) Model() string {
	return t.model
}

// Transcribe отправляет аудио multipart-запросом и возвращает текст.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingAPIKey)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("model", t.model)
	_ = w.WriteField("response_format", "text")

	part, err := w.CreateFormFile("file", "audio"+audioExtension(contentType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return strings.TrimSpace(string(body)), nil
}

func audioExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return ".mp3"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return ".m4a"
	default:
		return ".webm"
	}
}

// decodeAudio декодирует base64 или data URI.
func decodeAudio(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, encoded, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data URI")
		}
		s = encoded
	}
	return base64.StdEncoding.DecodeString(s)
}

// transcribe распознаёт voice_data (base64) и возвращает текст в поле text.
func (l *Local) transcribe(ctx context.Context, req NodeRequest) (*NodeResponse, error) {
	voice := getString(req.Inputs, "voice_data", "")
	if voice == "" {
		return nil, errors.New("No voice input found from connected nodes. Please connect a Voice Input node.")
	}
	if l.transcriber == nil {
		return nil, fmt.Errorf("Transcription API error: %w", ErrMissingAPIKey)
	}

	audio, err := decodeAudio(voice)
	if err != nil {
		return nil, fmt.Errorf("Transcription API error: decode audio: %w", err)
	}

	text, err := l.transcriber.Transcribe(ctx, audio, getString(req.Inputs, "content_type", "audio/webm"))
	if err != nil {
		return nil, fmt.Errorf("Transcription API error: %w", err)
	}

	sessionID := getString(req.Inputs, "session_id", "")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp := Success(map[string]any{
		"text":       text,
		"session_id": sessionID,
		"input_type": "voice",
	}, "Audio transcription generated: "+truncate(text, 50))
	if m, ok := l.transcriber.(interface{ Model() string }); ok {
		resp.Metadata["model"] = m.Model()
	}
	return resp, nil
}
