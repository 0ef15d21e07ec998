package executor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/domain"
)

// Constructor создаёт исполнитель для конкретного узла.
type Constructor func(d Deps) Executor

// Registry — реестр исполнителей по типу узла.
//
// Регистрация открыта при старте процесса. Для незарегистрированных типов
// Create возвращает false, и вызывающий использует Generic.
// Потокобезопасен.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	aliases      map[string]string

	service compute.Service
	logger  *slog.Logger
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(service compute.Service, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		constructors: make(map[string]Constructor),
		aliases:      make(map[string]string),
		service:      service,
		logger:       logger,
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными исполнителями.
func DefaultRegistry(service compute.Service, logger *slog.Logger) *Registry {
	r := NewRegistry(service, logger)

	r.Register(catalog.TypeChatInput, NewInputCapture)
	r.Register(catalog.TypeVoiceInput, NewInputCapture)
	r.Register(catalog.TypeAIChat, NewAIChat)
	r.Register(catalog.TypeOpenAIChat, NewAIChat)
	r.Register(catalog.TypeDeepSeekChat, NewAIChat)
	r.Register(catalog.TypeTranscription, NewTranscription)
	r.Register(catalog.TypeTelegramMessage, NewTelegramMessage)

	for alias, id := range catalog.Aliases() {
		r.Alias(alias, id)
	}

	return r
}

// Register регистрирует конструктор для типа.
// Если тип уже зарегистрирован, конструктор будет заменён.
func (r *Registry) Register(typeID string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[typeID] = c
}

// Alias связывает устаревший ID типа с каноническим.
func (r *Registry) Alias(alias, typeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = typeID
}

// Create создаёт исполнитель для узла.
// Возвращает false, если тип не зарегистрирован.
func (r *Registry) Create(nodeID string, node domain.NodeInstance, nodeType domain.NodeType, update UpdateFunc) (Executor, bool) {
	r.mu.RLock()
	typeID := node.TypeID
	if canonical, ok := r.aliases[typeID]; ok {
		typeID = canonical
	}
	c, ok := r.constructors[typeID]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if nodeType.ID == "" {
		nodeType.ID = typeID
	}
	return c(r.deps(nodeID, nodeType, update)), true
}

// Get создаёт исполнитель или возвращает ErrExecutorNotFound.
func (r *Registry) Get(nodeID string, node domain.NodeInstance, nodeType domain.NodeType, update UpdateFunc) (Executor, error) {
	e, ok := r.Create(nodeID, node, nodeType, update)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotFound, node.TypeID)
	}
	return e, nil
}

// Generic создаёт универсальный исполнитель, работающий через сервис вычислений.
func (r *Registry) Generic(nodeID string, node domain.NodeInstance, nodeType domain.NodeType, update UpdateFunc) Executor {
	if nodeType.ID == "" {
		nodeType.ID = node.TypeID
	}
	return NewGeneric(r.deps(nodeID, nodeType, update))
}

func (r *Registry) deps(nodeID string, nodeType domain.NodeType, update UpdateFunc) Deps {
	return Deps{
		NodeID:   nodeID,
		NodeType: nodeType,
		Service:  r.service,
		Update:   update,
		Logger:   r.logger.With(slog.String("node_id", nodeID), slog.String("node_type", nodeType.ID)),
	}
}

// Has проверяет, зарегистрирован ли тип (с учётом алиасов).
func (r *Registry) Has(typeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[typeID]; ok {
		typeID = canonical
	}
	_, exists := r.constructors[typeID]
	return exists
}

// Types возвращает список зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
