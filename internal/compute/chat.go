package compute

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/domain"
)

// Провайдеры чат-моделей.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

const defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"

// ModelFactory создаёт чат-модель для провайдера и имени модели.
type ModelFactory func(provider, model string) (llms.Model, error)

// ProviderConfig — ключи и адреса провайдеров моделей.
type ProviderConfig struct {
	OpenAIKey       string
	OpenAIBaseURL   string
	DeepSeekKey     string
	DeepSeekBaseURL string
}

// NewModelFactory возвращает фабрику OpenAI-совместимых моделей langchaingo.
// DeepSeek использует тот же протокол с другим base URL.
func NewModelFactory(cfg ProviderConfig) ModelFactory {
	if cfg.DeepSeekBaseURL == "" {
		cfg.DeepSeekBaseURL = defaultDeepSeekBaseURL
	}

	return func(provider, model string) (llms.Model, error) {
		opts := []openai.Option{openai.WithModel(model)}

		switch provider {
		case ProviderDeepSeek:
			if cfg.DeepSeekKey == "" {
				return nil, fmt.Errorf("%w: DEEPSEEK_API_KEY", ErrMissingAPIKey)
			}
			opts = append(opts, openai.WithToken(cfg.DeepSeekKey), openai.WithBaseURL(cfg.DeepSeekBaseURL))
		default:
			if cfg.OpenAIKey == "" {
				return nil, fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingAPIKey)
			}
			opts = append(opts, openai.WithToken(cfg.OpenAIKey))
			if cfg.OpenAIBaseURL != "" {
				opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
			}
		}

		llm, err := openai.New(opts...)
		if err != nil {
			return nil, err
		}
		return llm, nil
	}
}

// providerFor выбирает провайдера по типу узла и модели.
func providerFor(typeID, model string) string {
	switch {
	case typeID == catalog.TypeDeepSeekChat:
		return ProviderDeepSeek
	case typeID == catalog.TypeAIChat && strings.HasPrefix(model, "deepseek"):
		return ProviderDeepSeek
	default:
		return ProviderOpenAI
	}
}

// chat возвращает обработчик AI-чата.
//
// Ожидает вход input_text (его готовит исполнитель узла) и настройки
// model, system_prompt, temperature, max_tokens.
func (l *Local) chat(label string) Handler {
	return func(ctx context.Context, req NodeRequest) (*NodeResponse, error) {
		text := strings.TrimSpace(getString(req.Inputs, "input_text", ""))
		if text == "" {
			return nil, errors.New("No valid string input found from connected nodes. Please connect a node that outputs string data.")
		}
		if l.models == nil {
			return nil, fmt.Errorf("%s API error: %w", label, ErrMissingAPIKey)
		}

		model := getString(req.Settings, "model", catalog.DefaultOpenAIModel)
		systemPrompt := getString(req.Settings, "system_prompt", catalog.DefaultSystemPrompt)
		temperature := getFloat(req.Settings, "temperature", catalog.DefaultTemperature)
		maxTokens := getInt(req.Settings, "max_tokens", catalog.DefaultMaxTokens)

		llm, err := l.models(providerFor(req.TypeID, model), model)
		if err != nil {
			return nil, fmt.Errorf("%s API error: %w", label, err)
		}

		messages := []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, text),
		}

		resp, err := llm.GenerateContent(ctx, messages,
			llms.WithTemperature(temperature),
			llms.WithMaxTokens(maxTokens),
		)
		if err != nil {
			return nil, fmt.Errorf("%s API error: %w", label, err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return nil, fmt.Errorf("%s API error: empty response", label)
		}

		choice := resp.Choices[0]
		promptTokens := tokenCount(choice.GenerationInfo, "PromptTokens", "InputTokens")
		completionTokens := tokenCount(choice.GenerationInfo, "CompletionTokens", "OutputTokens")

		sessionID := getString(req.Inputs, "session_id", "")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		output := map[string]any{
			"session_id":  sessionID,
			"input_text":  text,
			"input_type":  getString(req.Inputs, "input_type", string(domain.DetermineDataType(text))),
			"ai_response": choice.Content,
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
			"metadata": map[string]any{
				"model":         model,
				"system_prompt": systemPrompt,
				"temperature":   temperature,
				"max_tokens":    maxTokens,
				"input_tokens":  promptTokens,
				"output_tokens": completionTokens,
				"total_tokens":  promptTokens + completionTokens,
			},
		}

		return Success(map[string]any{"ai_response": output},
			fmt.Sprintf("%s response generated: %s", label, truncate(choice.Content, 50)),
			fmt.Sprintf("Tokens used - Input: %d, Output: %d, Total: %d",
				promptTokens, completionTokens, promptTokens+completionTokens),
		), nil
	}
}

// tokenCount извлекает счётчик токенов из GenerationInfo по первому найденному ключу.
func tokenCount(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
