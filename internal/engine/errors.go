package engine

import "errors"

// Ошибки конфигурации графа. Прерывают запуск до выполнения первого узла.
var (
	// ErrNoTrigger — в графе нет trigger-узла.
	ErrNoTrigger = errors.New("no trigger node found")

	// ErrMultipleTriggers — в графе больше одного trigger-узла.
	ErrMultipleTriggers = errors.New("multiple trigger nodes found")

	// ErrNotTrigger — указанный стартовый узел не является trigger.
	ErrNotTrigger = errors.New("node is not a trigger")

	// ErrEmptyOrder — порядок выполнения пуст.
	ErrEmptyOrder = errors.New("resolved execution order is empty")

	// ErrEmptyGraph — граф не содержит узлов.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrEmptyNodeID — узел без ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode — ребро или запуск ссылаются на несуществующий узел.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownNodeType — тип узла не найден в каталоге.
	ErrUnknownNodeType = errors.New("unknown node type")
)

// Ошибки валидации входных данных узла.
var (
	// ErrMissingInput — отсутствует обязательный вход.
	ErrMissingInput = errors.New("required input is missing")

	// ErrMissingSetting — отсутствует обязательная настройка.
	ErrMissingSetting = errors.New("required setting is missing")
)

// ConfigurationError — ошибка конфигурации графа (нет trigger, несколько trigger,
// пустой порядок выполнения, битые рёбра).
type ConfigurationError struct {
	FlowID  string // ID flow
	NodeID  string // ID узла, если ошибка относится к узлу
	Message string // описание для пользователя
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ConfigurationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError создаёт ошибку конфигурации.
func NewConfigurationError(flowID, nodeID, message string, err error) *ConfigurationError {
	return &ConfigurationError{
		FlowID:  flowID,
		NodeID:  nodeID,
		Message: message,
		Err:     err,
	}
}

// ValidationError — ошибка валидации входов или настроек узла.
type ValidationError struct {
	NodeID  string // ID узла, где произошла ошибка
	Field   string // вход или настройка, вызвавшие ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
