package compute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const defaultTelegramAPIURL = "https://api.telegram.org"

// TelegramConfig — конфигурация клиента Telegram Bot API.
type TelegramConfig struct {
	// APIURL — адрес Bot API. По умолчанию https://api.telegram.org.
	APIURL string

	HTTPClient *http.Client
}

// Telegram — минимальный клиент Telegram Bot API (sendMessage).
type Telegram struct {
	apiURL string
	http   *http.Client
}

// NewTelegram создаёт клиент Bot API.
func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultTelegramAPIURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Telegram{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		http:   cfg.HTTPClient,
	}
}

// SendMessage отправляет текст в чат и возвращает ответ Bot API.
func (t *Telegram) SendMessage(ctx context.Context, token string, chatID any, text string) (map[string]any, error) {
	payload, err := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Error sending Telegram message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read telegram response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Failed to send message: %s", truncate(string(body), 200))
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode telegram response: %w", err)
	}
	return result, nil
}

// sendTelegram отправляет message_text в чат chat_id от имени бота access_token.
// Учётные данные исполнитель узла уже собрал из настроек или входов.
func (l *Local) sendTelegram(ctx context.Context, req NodeRequest) (*NodeResponse, error) {
	text := strings.TrimSpace(getString(req.Inputs, "message_text", ""))
	if text == "" {
		return nil, errors.New("No valid message text found in inputs")
	}

	token := getString(req.Settings, "access_token", "")
	if token == "" {
		return nil, errors.New("No Telegram access_token found. Please configure it in node settings or connect a node that provides it.")
	}

	chatID := normalizeChatID(req.Settings["chat_id"])
	if chatID == nil {
		return nil, errors.New("No Telegram chat_id found. Please configure it in node settings or connect a node that provides it.")
	}

	result, err := l.telegram.SendMessage(ctx, token, chatID, text)
	if err != nil {
		return nil, err
	}

	output := map[string]any{
		"success":      true,
		"message_sent": truncate(text, 100),
		"chat_id":      chatID,
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
		"response":     result,
	}

	return Success(map[string]any{"telegram_result": output},
		fmt.Sprintf("Message sent successfully to chat %v", chatID)), nil
}

// normalizeChatID приводит числовую строку chat_id к int64.
// Пустые значения возвращаются как nil.
func normalizeChatID(v any) any {
	switch id := v.(type) {
	case nil:
		return nil
	case string:
		if id == "" {
			return nil
		}
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			return n
		}
		return id
	case float64:
		return int64(id)
	default:
		return id
	}
}
