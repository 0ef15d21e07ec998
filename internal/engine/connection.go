package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/nodeflow/internal/domain"
)

// ConnectionResult — результат проверки соединения двух портов.
type ConnectionResult struct {
	IsValid      bool     `json:"is_valid"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// ConnectionValidator проверяет соединения при редактировании flow.
// Во время выполнения не используется.
type ConnectionValidator struct {
	types TypeResolver
}

// NewConnectionValidator создаёт валидатор поверх каталога типов.
func NewConnectionValidator(types TypeResolver) *ConnectionValidator {
	return &ConnectionValidator{types: types}
}

// Validate проверяет, можно ли соединить выход sourcePort узла типа sourceType
// со входом targetPort узла типа targetType.
//
// Порты можно передавать как имена или как handle ("out__ai_response").
// Пустой порт означает порт по умолчанию: первый выход / первый вход.
func (v *ConnectionValidator) Validate(sourceType, sourcePort, targetType, targetPort string) ConnectionResult {
	src, ok := v.types.NodeType(sourceType)
	if !ok {
		return invalid(fmt.Sprintf("Unknown source node type: %s", sourceType))
	}
	dst, ok := v.types.NodeType(targetType)
	if !ok {
		return invalid(fmt.Sprintf("Unknown target node type: %s", targetType))
	}

	if dst.Category == domain.CategoryTrigger || len(dst.Ports.Inputs) == 0 {
		return invalid(fmt.Sprintf("Node type %s does not accept incoming connections", dst.ID))
	}
	if len(src.Ports.Outputs) == 0 {
		return invalid(fmt.Sprintf("Node type %s has no outputs", src.ID))
	}

	out, ok := pickPort(src.Ports.Outputs, domain.HandlePortName(sourcePort))
	if !ok {
		res := invalid(fmt.Sprintf("Output port %q not found on %s", domain.HandlePortName(sourcePort), src.ID))
		res.Suggestions = portNames(src.Ports.Outputs)
		return res
	}

	in, ok := pickPort(dst.Ports.Inputs, domain.HandlePortName(targetPort))
	if !ok {
		res := invalid(fmt.Sprintf("Input port %q not found on %s", domain.HandlePortName(targetPort), dst.ID))
		res.Suggestions = compatibleInputs(dst.Ports.Inputs, out)
		return res
	}

	if !in.Accepts(out.DataTypes) {
		res := invalid(fmt.Sprintf("Incompatible data types: %s outputs %s, %s accepts %s",
			out.Name, joinTypes(out.DataTypes), in.Name, joinTypes(in.DataTypes)))
		res.Suggestions = compatibleInputs(dst.Ports.Inputs, out)
		return res
	}

	return ConnectionResult{IsValid: true}
}

func invalid(msg string) ConnectionResult {
	return ConnectionResult{IsValid: false, ErrorMessage: msg}
}

func pickPort(ports []domain.Port, name string) (domain.Port, bool) {
	if name == "" {
		return ports[0], true
	}
	for _, p := range ports {
		if p.ID == name || p.Name == name {
			return p, true
		}
	}
	return domain.Port{}, false
}

func portNames(ports []domain.Port) []string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return names
}

// compatibleInputs возвращает имена входов, принимающих данные порта out.
func compatibleInputs(inputs []domain.Port, out domain.Port) []string {
	var names []string
	for _, p := range inputs {
		if p.Accepts(out.DataTypes) {
			names = append(names, p.Name)
		}
	}
	return names
}

func joinTypes(types []domain.DataType) string {
	if len(types) == 0 {
		return string(domain.DataTypeAny)
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}
