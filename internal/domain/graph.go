package domain

import "strings"

// Category — категория типа узла.
type Category string

const (
	// CategoryTrigger — точка входа flow, поставляет начальные входные данные.
	CategoryTrigger Category = "trigger"

	// CategoryProcessor — преобразует данные (например, AI-чат, транскрипция).
	CategoryProcessor Category = "processor"

	// CategoryAction — выполняет внешнее действие (например, отправка в Telegram).
	CategoryAction Category = "action"
)

// Categories возвращает все категории в порядке отображения.
func Categories() []Category {
	return []Category{CategoryTrigger, CategoryProcessor, CategoryAction}
}

// Port — именованная типизированная точка подключения узла.
type Port struct {
	// ID — идентификатор порта в рамках типа узла.
	ID string `json:"id" yaml:"id"`

	// Name — имя порта; совпадает с ключом в outputs/inputs.
	Name string `json:"name" yaml:"name"`

	// Label — подпись для UI.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Description — описание назначения порта.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// DataTypes — допустимые типы данных. Порт может принимать несколько типов.
	DataTypes []DataType `json:"data_type" yaml:"data_type"`

	// Required — обязателен ли порт.
	Required bool `json:"required" yaml:"required"`
}

// Accepts проверяет, совместим ли порт с любым из типов other.
// DataTypeAny совместим со всем.
func (p Port) Accepts(other []DataType) bool {
	if len(p.DataTypes) == 0 || len(other) == 0 {
		return true
	}
	for _, mine := range p.DataTypes {
		if mine == DataTypeAny {
			return true
		}
		for _, theirs := range other {
			if theirs == DataTypeAny || theirs == mine {
				return true
			}
		}
	}
	return false
}

// Ports — входные и выходные порты типа узла.
type Ports struct {
	Inputs  []Port `json:"inputs" yaml:"inputs"`
	Outputs []Port `json:"outputs" yaml:"outputs"`
}

// SettingProperty — описание одной настройки узла.
type SettingProperty struct {
	Type        string   `json:"type"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

// SettingsSchema — схема настроек типа узла (подмножество JSON Schema).
type SettingsSchema struct {
	Properties map[string]SettingProperty `json:"properties"`
	Required   []string                   `json:"required"`
}

// Defaults возвращает значения по умолчанию для всех настроек, у которых они заданы.
func (s SettingsSchema) Defaults() map[string]any {
	defaults := make(map[string]any, len(s.Properties))
	for name, prop := range s.Properties {
		if prop.Default != nil {
			defaults[name] = prop.Default
		}
	}
	return defaults
}

// NodeType — определение типа узла.
type NodeType struct {
	// ID — идентификатор типа ("chat_input", "ai-chat", ...).
	ID string `json:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name"`

	// Description — описание типа.
	Description string `json:"description,omitempty"`

	// Category — trigger, processor или action.
	Category Category `json:"category"`

	// Version — версия определения типа.
	Version string `json:"version"`

	// Ports — входные и выходные порты.
	Ports Ports `json:"ports"`

	// SettingsSchema — схема настроек экземпляра.
	SettingsSchema SettingsSchema `json:"settings_schema"`
}

// InputPort возвращает входной порт по id или имени.
func (t NodeType) InputPort(id string) (Port, bool) {
	return findPort(t.Ports.Inputs, id)
}

// OutputPort возвращает выходной порт по id или имени.
func (t NodeType) OutputPort(id string) (Port, bool) {
	return findPort(t.Ports.Outputs, id)
}

func findPort(ports []Port, id string) (Port, bool) {
	for _, p := range ports {
		if p.ID == id || p.Name == id {
			return p, true
		}
	}
	return Port{}, false
}

// NodeInstance — экземпляр узла на холсте flow.
type NodeInstance struct {
	// ID — уникальный идентификатор узла.
	ID string `json:"id" yaml:"id"`

	// TypeID — ссылка на NodeType.
	TypeID string `json:"type_id" yaml:"type_id"`

	// Label — подпись узла, заданная пользователем.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Settings — настройки экземпляра (перекрывают значения по умолчанию из схемы).
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Disabled — выключенные узлы не попадают в граф выполнения.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`

	// LastExecution — последняя запись о выполнении (заполняется при отдаче графа в UI).
	LastExecution *ExecutionRecord `json:"last_execution,omitempty" yaml:"-"`
}

// Edge — направленное ребро от выходного порта к входному.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	SourceNodeID string `json:"source_node_id" yaml:"source"`
	SourcePortID string `json:"source_port_id,omitempty" yaml:"source_port,omitempty"`
	TargetNodeID string `json:"target_node_id" yaml:"target"`
	TargetPortID string `json:"target_port_id,omitempty" yaml:"target_port,omitempty"`
}

// Graph — узлы и рёбра одного flow в порядке создания.
type Graph struct {
	FlowID string         `json:"flow_id" yaml:"flow_id"`
	Nodes  []NodeInstance `json:"nodes" yaml:"nodes"`
	Edges  []Edge         `json:"edges" yaml:"edges"`
}

// Node возвращает узел по ID.
func (g *Graph) Node(id string) (*NodeInstance, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Outgoing возвращает исходящие рёбра узла в порядке их объявления.
func (g *Graph) Outgoing(nodeID string) []Edge {
	var edges []Edge
	for _, e := range g.Edges {
		if e.SourceNodeID == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// Incoming возвращает входящие рёбра узла в порядке их объявления.
func (g *Graph) Incoming(nodeID string) []Edge {
	var edges []Edge
	for _, e := range g.Edges {
		if e.TargetNodeID == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// NodeIDs возвращает ID всех узлов.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// HandleSeparator разделяет сторону и имя порта в handle ("in__message_data").
const HandleSeparator = "__"

// HandlePortName извлекает имя порта из handle вида "<side>__<portName>".
// Handle без разделителя считается именем порта. Пустой handle и "default"
// означают, что порт не указан (возвращается "").
func HandlePortName(handle string) string {
	if handle == "" || handle == "default" {
		return ""
	}
	if i := strings.Index(handle, HandleSeparator); i >= 0 {
		name := handle[i+len(HandleSeparator):]
		if name == "default" {
			return ""
		}
		return name
	}
	return handle
}
