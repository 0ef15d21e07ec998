package catalog

import (
	"fmt"
	"sync"

	"github.com/shaiso/nodeflow/internal/domain"
)

// Catalog — каталог типов узлов.
//
// Хранит определения NodeType в порядке регистрации и алиасы устаревших ID
// ("chat-input" → "chat_input"). Потокобезопасен.
type Catalog struct {
	mu      sync.RWMutex
	types   map[string]domain.NodeType
	order   []string
	aliases map[string]string
}

// New создаёт пустой каталог.
func New() *Catalog {
	return &Catalog{
		types:   make(map[string]domain.NodeType),
		aliases: make(map[string]string),
	}
}

// Default создаёт каталог со всеми встроенными типами и алиасами.
func Default() *Catalog {
	c := New()
	for _, t := range Builtin() {
		c.Register(t)
	}
	for alias, id := range builtinAliases {
		c.Alias(alias, id)
	}
	return c
}

// Register добавляет тип в каталог. Повторная регистрация заменяет определение.
func (c *Catalog) Register(t domain.NodeType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.types[t.ID]; !exists {
		c.order = append(c.order, t.ID)
	}
	c.types[t.ID] = t
}

// Alias связывает устаревший ID с каноническим.
func (c *Catalog) Alias(alias, typeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = typeID
}

// Canonical возвращает канонический ID типа (алиасы разворачиваются).
func (c *Catalog) Canonical(typeID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.canonical(typeID)
}

func (c *Catalog) canonical(typeID string) string {
	if id, ok := c.aliases[typeID]; ok {
		return id
	}
	return typeID
}

// NodeType возвращает определение типа по ID или алиасу.
func (c *Catalog) NodeType(typeID string) (domain.NodeType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.types[c.canonical(typeID)]
	return t, ok
}

// Get возвращает определение типа или ErrNodeTypeNotFound.
func (c *Catalog) Get(typeID string) (domain.NodeType, error) {
	t, ok := c.NodeType(typeID)
	if !ok {
		return domain.NodeType{}, fmt.Errorf("%w: %s", ErrNodeTypeNotFound, typeID)
	}
	return t, nil
}

// All возвращает все типы в порядке регистрации.
func (c *Catalog) All() []domain.NodeType {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.NodeType, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.types[id])
	}
	return out
}

// ByCategory возвращает типы указанной категории.
func (c *Catalog) ByCategory(category domain.Category) []domain.NodeType {
	var out []domain.NodeType
	for _, t := range c.All() {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Count возвращает количество зарегистрированных типов.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types)
}
