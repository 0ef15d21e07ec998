package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shaiso/nodeflow/internal/mq"
	"github.com/shaiso/nodeflow/internal/orchestrator"
	"github.com/shaiso/nodeflow/internal/repo"
)

// Режимы сервиса вычислений.
const (
	// ComputeLocal — узлы выполняются в процессе (langchaingo, Telegram Bot API).
	ComputeLocal = "local"

	// ComputeRemote — узлы выполняет внешний сервис по HTTP.
	ComputeRemote = "remote"
)

// Config — настройки процессов nodeflow из окружения.
type Config struct {
	HTTPAddr    string // HTTP_ADDR (default: :8080)
	MetricsAddr string // METRICS_ADDR, /healthz и /metrics worker (default: :8082)

	DBURL       string // DB_URL
	RabbitMQURL string // RABBITMQ_URL

	ComputeMode  string // COMPUTE_MODE: local | remote
	ComputeURL   string // COMPUTE_URL
	ComputeToken string // COMPUTE_TOKEN

	ExecutionMode orchestrator.Mode // EXECUTION_MODE: local | server
	NodeTimeout   time.Duration     // NODE_TIMEOUT (default: 30s)
	RunTimeout    time.Duration     // RUN_TIMEOUT (default: 60s)

	OpenAIKey       string // OPENAI_API_KEY
	OpenAIBaseURL   string // OPENAI_BASE_URL
	DeepSeekKey     string // DEEPSEEK_API_KEY
	DeepSeekBaseURL string // DEEPSEEK_BASE_URL
	TelegramAPIURL  string // TELEGRAM_API_URL

	CORSOrigins []string // CORS_ORIGINS, через запятую

	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT
}

// Load читает необязательные .env файлы, затем окружение.
//
// Без аргументов читается ./.env, если он есть. Переменные окружения
// процесса не перезаписываются значениями из файла.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv собирает Config из переменных окружения.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		MetricsAddr:     getenv("METRICS_ADDR", ":8082"),
		DBURL:           getenv("DB_URL", repo.DefaultDSN),
		RabbitMQURL:     getenv("RABBITMQ_URL", mq.DefaultURL()),
		ComputeMode:     strings.ToLower(getenv("COMPUTE_MODE", ComputeLocal)),
		ComputeURL:      os.Getenv("COMPUTE_URL"),
		ComputeToken:    os.Getenv("COMPUTE_TOKEN"),
		ExecutionMode:   orchestrator.ParseMode(strings.ToLower(os.Getenv("EXECUTION_MODE"))),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		DeepSeekKey:     os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL: os.Getenv("DEEPSEEK_BASE_URL"),
		TelegramAPIURL:  os.Getenv("TELEGRAM_API_URL"),
		CORSOrigins:     splitList(os.Getenv("CORS_ORIGINS")),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		LogFormat:       os.Getenv("LOG_FORMAT"),
	}

	var err error
	if cfg.NodeTimeout, err = duration("NODE_TIMEOUT", orchestrator.DefaultNodeTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RunTimeout, err = duration("RUN_TIMEOUT", orchestrator.DefaultRunTimeout); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.ComputeMode {
	case ComputeLocal:
	case ComputeRemote:
		if c.ComputeURL == "" {
			return fmt.Errorf("%w: COMPUTE_URL is required when COMPUTE_MODE=remote", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown COMPUTE_MODE %q", ErrInvalidConfig, c.ComputeMode)
	}

	if c.ExecutionMode == orchestrator.ModeServer && c.ComputeMode != ComputeRemote {
		return fmt.Errorf("%w: EXECUTION_MODE=server requires COMPUTE_MODE=remote", ErrInvalidConfig)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// duration парсит "30s", "1m" или число секунд.
func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, nil
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("%w: %s=%q is not a positive duration", ErrInvalidConfig, key, v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
