package mapper

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/nodeflow/internal/domain"
)

// ErrUpstreamMissing — у источника ребра ещё нет результата.
// Только логируется: маппинг никогда не завершается ошибкой.
var ErrUpstreamMissing = errors.New("upstream data missing")

// DefaultInputKey — ключ входа, если у ребра не указан целевой порт.
const DefaultInputKey = "input"

// FallbackFields — поля выхода источника, которые пробуются по порядку,
// если у ребра не указан исходный порт.
var FallbackFields = []string{"message_data", "ai_response", "response", "output", "result", "data", "text"}

// Config — конфигурация Mapper.
type Config struct {
	Logger *slog.Logger
}

// Mapper строит входы узла из результатов вышестоящих узлов.
type Mapper struct {
	logger *slog.Logger
}

// New создаёт Mapper.
func New(cfg Config) *Mapper {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Mapper{logger: cfg.Logger}
}

// MapInputs собирает входы узла nodeID по его входящим рёбрам.
//
// Для каждого ребра берётся накопленный результат источника (нет результата —
// предупреждение в лог, ребро ничего не даёт), из него значение: выход с именем
// исходного порта, иначе первое найденное из FallbackFields, иначе весь outputs.
// Ключ назначения — имя целевого порта или DefaultInputKey.
// Более поздние рёбра перезаписывают более ранние.
func (m *Mapper) MapInputs(nodeID string, incoming []domain.Edge, results map[string]*domain.ExecutionResult) map[string]any {
	inputs := make(map[string]any)

	for _, e := range incoming {
		if e.TargetNodeID != nodeID {
			continue
		}

		res, ok := results[e.SourceNodeID]
		if !ok || res == nil {
			m.logger.Warn("upstream data missing",
				slog.String("node_id", nodeID),
				slog.String("source_node_id", e.SourceNodeID),
				slog.String("edge_id", e.ID),
				slog.String("error", fmt.Errorf("%w: %s", ErrUpstreamMissing, e.SourceNodeID).Error()),
			)
			continue
		}

		key := domain.HandlePortName(e.TargetPortID)
		if key == "" {
			key = DefaultInputKey
		}
		inputs[key] = ResolveSource(res.Outputs, domain.HandlePortName(e.SourcePortID))
	}

	return inputs
}

// ResolveSource выбирает значение из выходов источника.
func ResolveSource(outputs map[string]any, port string) any {
	if port != "" {
		if v, ok := outputs[port]; ok {
			return v
		}
	}
	for _, field := range FallbackFields {
		if v, ok := outputs[field]; ok {
			return v
		}
	}
	return outputs
}
