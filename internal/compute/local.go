package compute

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/nodeflow/internal/catalog"
)

// Handler — обработчик узла внутри процесса.
//
// Возвращённая error трактуется как логическая ошибка узла
// и превращается в NodeResponse со статусом error.
type Handler func(ctx context.Context, req NodeRequest) (*NodeResponse, error)

// LocalConfig — конфигурация встроенного сервиса вычислений.
type LocalConfig struct {
	// Models — фабрика чат-моделей. Nil — AI-узлы возвращают ошибку конфигурации.
	Models ModelFactory

	// Transcriber — сервис распознавания речи. Nil — узел транскрипции недоступен.
	Transcriber Transcriber

	// Telegram — клиент Bot API. По умолчанию api.telegram.org.
	Telegram *Telegram

	Logger *slog.Logger
}

// Local — реализация Service, выполняющая узлы в текущем процессе.
type Local struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	models      ModelFactory
	transcriber Transcriber
	telegram    *Telegram
	logger      *slog.Logger
}

// NewLocal создаёт сервис со встроенными обработчиками.
func NewLocal(cfg LocalConfig) *Local {
	if cfg.Telegram == nil {
		cfg.Telegram = NewTelegram(TelegramConfig{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	l := &Local{
		handlers:    make(map[string]Handler),
		models:      cfg.Models,
		transcriber: cfg.Transcriber,
		telegram:    cfg.Telegram,
		logger:      cfg.Logger,
	}

	l.Register(catalog.TypeChatInput, chatInput)
	l.Register(catalog.TypeVoiceInput, voiceInput)
	l.Register(catalog.TypeAIChat, l.chat("AI"))
	l.Register(catalog.TypeOpenAIChat, l.chat("OpenAI"))
	l.Register(catalog.TypeDeepSeekChat, l.chat("DeepSeek"))
	l.Register(catalog.TypeTranscription, l.transcribe)
	l.Register(catalog.TypeTelegramMessage, l.sendTelegram)

	return l
}

// Register регистрирует обработчик. Повторная регистрация заменяет его.
func (l *Local) Register(typeID string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[typeID] = h
}

// ExecuteNode выполняет узел зарегистрированным обработчиком.
func (l *Local) ExecuteNode(ctx context.Context, req NodeRequest) (*NodeResponse, error) {
	l.mu.RLock()
	h, ok := l.handlers[req.TypeID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, req.TypeID)
	}

	resp, err := h(ctx, req)
	if err != nil {
		l.logger.Warn("node handler failed",
			slog.String("node_id", req.NodeID),
			slog.String("node_type", req.TypeID),
			slog.String("error", err.Error()),
		)
		return Failure(err.Error()), nil
	}
	return resp, nil
}

// ExecuteFlow не поддерживается: координатор выполняет flow сам.
func (l *Local) ExecuteFlow(_ context.Context, flowID string, _ map[string]any) (*FlowResponse, error) {
	return nil, fmt.Errorf("%w: local service cannot execute flow %s", ErrUnsupported, flowID)
}

// getString извлекает строку из map с default значением.
func getString(m map[string]any, key, defaultVal string) string {
	if val, ok := m[key]; ok {
		if s, ok := val.(string); ok && s != "" {
			return s
		}
	}
	return defaultVal
}

// getFloat извлекает число из map с default значением.
func getFloat(m map[string]any, key string, defaultVal float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return defaultVal
}

// getInt извлекает целое из map с default значением.
func getInt(m map[string]any, key string, defaultVal int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return defaultVal
}
