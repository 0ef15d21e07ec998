package catalog

import (
	"maps"

	"github.com/shaiso/nodeflow/internal/domain"
)

// Встроенные типы узлов.
const (
	TypeChatInput       = "chat_input"
	TypeVoiceInput      = "voice_input"
	TypeAIChat          = "ai-chat"
	TypeOpenAIChat      = "simple-openai-chat"
	TypeDeepSeekChat    = "simple-deepseek-chat"
	TypeTranscription   = "transcription"
	TypeTelegramMessage = "send_telegram_message"
)

// Настройки AI-чата по умолчанию.
const (
	DefaultOpenAIModel   = "gpt-3.5-turbo"
	DefaultDeepSeekModel = "deepseek-chat"
	DefaultSystemPrompt  = "You are a helpful assistant."
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 1024
)

var builtinAliases = map[string]string{
	"chat-input":  TypeChatInput,
	"voice-input": TypeVoiceInput,
	"ai_chat":     TypeAIChat,
}

// Aliases возвращает устаревшие ID типов и их канонические ID.
func Aliases() map[string]string {
	return maps.Clone(builtinAliases)
}

var (
	openAIModels   = []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo", "gpt-4.1", "gpt-4.1-mini", "gpt-4o", "gpt-4o-mini", "o3", "o4-mini", "o1", "o3-mini"}
	deepSeekModels = []string{"deepseek-chat", "deepseek-reasoner"}
)

// Builtin возвращает определения встроенных типов узлов.
func Builtin() []domain.NodeType {
	return []domain.NodeType{
		{
			ID:          TypeChatInput,
			Name:        "Chat Input",
			Description: "Manual text input trigger for testing and user interaction",
			Category:    domain.CategoryTrigger,
			Version:     "1.0.0",
			Ports: domain.Ports{
				Outputs: []domain.Port{
					port("message_data", "Message Data", "Contains session ID, input text, and input type",
						domain.DataTypeObject),
				},
			},
			SettingsSchema: emptySchema(),
		},
		{
			ID:          TypeVoiceInput,
			Name:        "Voice Input",
			Description: "Voice recording trigger",
			Category:    domain.CategoryTrigger,
			Version:     "1.0.0",
			Ports: domain.Ports{
				Outputs: []domain.Port{
					port("message_data", "Message Data", "Contains session ID and recorded audio",
						domain.DataTypeObject),
				},
			},
			SettingsSchema: emptySchema(),
		},
		chatType(TypeAIChat, "AI Chat", "Processes input text using a chat model",
			DefaultOpenAIModel, append(append([]string{}, openAIModels...), deepSeekModels...)),
		chatType(TypeOpenAIChat, "OpenAI Chat", "Processes input text using OpenAI's chat model",
			DefaultOpenAIModel, openAIModels),
		chatType(TypeDeepSeekChat, "DeepSeek Chat", "Processes input text using DeepSeek's chat model",
			DefaultDeepSeekModel, deepSeekModels),
		{
			ID:          TypeTranscription,
			Name:        "Audio Transcription",
			Description: "Transcribes audio to text",
			Category:    domain.CategoryProcessor,
			Version:     "1.0.0",
			Ports: domain.Ports{
				Inputs: []domain.Port{
					port("message_data", "Message Data", "Contains voice input data from voice input node",
						domain.DataTypeObject),
				},
				Outputs: []domain.Port{
					port("transcription", "Transcription", "The transcribed text from the audio",
						domain.DataTypeString),
				},
			},
			SettingsSchema: emptySchema(),
		},
		{
			ID:          TypeTelegramMessage,
			Name:        "Send Telegram Message",
			Description: "Send message to Telegram bot",
			Category:    domain.CategoryAction,
			Version:     "1.0.0",
			Ports: domain.Ports{
				Inputs: []domain.Port{
					port("message_text", "Message Text", "Text to send to the Telegram chat",
						domain.DataTypeString, domain.DataTypeObject),
				},
				Outputs: []domain.Port{
					port("telegram_result", "Telegram Result", "Telegram send receipt",
						domain.DataTypeObject),
				},
			},
			SettingsSchema: domain.SettingsSchema{
				Properties: map[string]domain.SettingProperty{
					"access_token": {
						Type:        "string",
						Title:       "Bot Access Token",
						Description: "Telegram Bot API access token (from @BotFather)",
					},
					"chat_id": {
						Type:        "string",
						Title:       "Chat ID",
						Description: "Telegram Chat ID to send messages to (optional if provided by an upstream node)",
					},
				},
				Required: []string{},
			},
		},
	}
}

func chatType(id, name, description, defaultModel string, models []string) domain.NodeType {
	return domain.NodeType{
		ID:          id,
		Name:        name,
		Description: description,
		Category:    domain.CategoryProcessor,
		Version:     "1.0.0",
		Ports: domain.Ports{
			Inputs: []domain.Port{
				port("message_data", "Message Data", "Text or message data from the previous node",
					domain.DataTypeObject, domain.DataTypeString),
			},
			Outputs: []domain.Port{
				port("ai_response", "AI Response", "The response from the model", domain.DataTypeString),
				port("plain_text", "Plain Text", "The response without markdown", domain.DataTypeString),
			},
		},
		SettingsSchema: domain.SettingsSchema{
			Properties: map[string]domain.SettingProperty{
				"model": {
					Type:        "string",
					Description: "Chat model to use",
					Default:     defaultModel,
					Enum:        models,
				},
				"system_prompt": {
					Type:        "string",
					Description: "System prompt to guide the AI response",
					Default:     DefaultSystemPrompt,
				},
				"temperature": {
					Type:        "number",
					Description: "Controls randomness (0-2)",
					Default:     DefaultTemperature,
					Minimum:     float(0),
					Maximum:     float(2),
				},
				"max_tokens": {
					Type:        "integer",
					Description: "Maximum number of tokens to generate (1-4096)",
					Default:     DefaultMaxTokens,
					Minimum:     float(1),
					Maximum:     float(4096),
				},
			},
			Required: []string{"model", "system_prompt"},
		},
	}
}

func port(name, label, description string, types ...domain.DataType) domain.Port {
	return domain.Port{
		ID:          name,
		Name:        name,
		Label:       label,
		Description: description,
		DataTypes:   types,
		Required:    true,
	}
}

func emptySchema() domain.SettingsSchema {
	return domain.SettingsSchema{
		Properties: map[string]domain.SettingProperty{},
		Required:   []string{},
	}
}

func float(v float64) *float64 { return &v }
