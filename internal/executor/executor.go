package executor

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
)

// UpdateFunc — обратный вызов для сообщений о прогрессе узла.
type UpdateFunc func(status domain.ExecutionStatus, message string)

// Context — данные одного выполнения узла.
//
// ValidateInputs может переписать Inputs и Settings в канонический вид
// перед вызовом сервиса вычислений.
type Context struct {
	FlowID   string
	NodeID   string
	TypeID   string
	Inputs   map[string]any
	Settings map[string]any
}

// NewContext собирает контекст выполнения: настройки по умолчанию из схемы
// типа, поверх них настройки экземпляра.
func NewContext(flowID string, node domain.NodeInstance, nodeType domain.NodeType, inputs map[string]any) (*Context, error) {
	settings, err := MergeSettings(nodeType.SettingsSchema.Defaults(), node.Settings)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node.ID, err)
	}
	if inputs == nil {
		inputs = make(map[string]any)
	}

	typeID := nodeType.ID
	if typeID == "" {
		typeID = node.TypeID
	}

	return &Context{
		FlowID:   flowID,
		NodeID:   node.ID,
		TypeID:   typeID,
		Inputs:   inputs,
		Settings: settings,
	}, nil
}

// Executor — исполнитель узла определённого типа.
//
// Реализации: InputCapture, AIChat, Transcription, TelegramMessage, Generic.
type Executor interface {
	// ValidateInputs проверяет и нормализует входы и настройки.
	// Возвращает *engine.ValidationError при отсутствии обязательных данных.
	ValidateInputs(ec *Context) error

	// Execute выполняет узел: ValidateInputs → сервис вычислений → PostProcess.
	Execute(ctx context.Context, ec *Context) (*domain.ExecutionResult, error)

	// PostProcess приводит сырой ответ сервиса к нормализованному результату.
	PostProcess(ec *Context, raw *compute.NodeResponse) (*domain.ExecutionResult, error)
}

// Hooks — шаги шаблона, которые переопределяют варианты исполнителя.
type Hooks interface {
	ValidateInputs(ec *Context) error
	PostProcess(ec *Context, raw *compute.NodeResponse) (*domain.ExecutionResult, error)
}

// Deps — зависимости исполнителя.
type Deps struct {
	NodeID   string
	NodeType domain.NodeType
	Service  compute.Service
	Update   UpdateFunc
	Logger   *slog.Logger
}

// Base — шаблон выполнения узла. Варианты встраивают *Base и переопределяют хуки.
type Base struct {
	self     Hooks
	nodeID   string
	nodeType domain.NodeType
	service  compute.Service
	update   UpdateFunc
	logger   *slog.Logger
}

// NewBase создаёт шаблон; self — вариант, чьи хуки вызывает Execute.
func NewBase(self Hooks, d Deps) *Base {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Base{
		self:     self,
		nodeID:   d.NodeID,
		nodeType: d.NodeType,
		service:  d.Service,
		update:   d.Update,
		logger:   d.Logger,
	}
}

// Execute выполняет узел по шаблону.
func (b *Base) Execute(ctx context.Context, ec *Context) (*domain.ExecutionResult, error) {
	start := time.Now()

	if err := b.self.ValidateInputs(ec); err != nil {
		return nil, err
	}

	b.Report(domain.StatusRunning, "Processing...")

	raw, err := b.service.ExecuteNode(ctx, compute.NodeRequest{
		FlowID:   ec.FlowID,
		NodeID:   ec.NodeID,
		TypeID:   ec.TypeID,
		Inputs:   ec.Inputs,
		Settings: ec.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("execute node %s: %w", ec.NodeID, err)
	}

	if !raw.OK() {
		msg := raw.Error
		if msg == "" {
			msg = "Node execution failed"
		}
		return nil, &NodeError{NodeID: ec.NodeID, Message: msg, Err: ErrNodeFailed}
	}

	result, err := b.self.PostProcess(ec, raw)
	if err != nil {
		return nil, err
	}

	if result.Metadata == nil {
		result.Metadata = make(map[string]any)
	}
	result.Metadata["execution_time_ms"] = time.Since(start).Milliseconds()

	b.logger.Debug("node executed",
		slog.String("node_id", ec.NodeID),
		slog.String("node_type", ec.TypeID),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// ValidateInputs по умолчанию проверяет обязательные настройки из схемы типа.
func (b *Base) ValidateInputs(ec *Context) error {
	for _, name := range b.nodeType.SettingsSchema.Required {
		if isEmpty(ec.Settings[name]) {
			return engine.NewValidationError(ec.NodeID, name,
				fmt.Sprintf("Missing required setting: %s", name), engine.ErrMissingSetting)
		}
	}
	return nil
}

// PostProcess по умолчанию копирует outputs и metadata ответа.
func (b *Base) PostProcess(_ *Context, raw *compute.NodeResponse) (*domain.ExecutionResult, error) {
	return domain.NewSuccessResult(maps.Clone(raw.Outputs), maps.Clone(raw.Metadata)), nil
}

// Report передаёт сообщение о прогрессе через update callback.
func (b *Base) Report(status domain.ExecutionStatus, message string) {
	if b.update != nil {
		b.update(status, message)
	}
}

// NodeType возвращает определение типа узла.
func (b *Base) NodeType() domain.NodeType {
	return b.nodeType
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	default:
		return false
	}
}

// Generic — универсальный исполнитель для типов без собственной логики.
// Использует хуки Base.
type Generic struct {
	*Base
}

// NewGeneric создаёт универсальный исполнитель.
func NewGeneric(d Deps) Executor {
	g := &Generic{}
	g.Base = NewBase(g, d)
	return g
}
