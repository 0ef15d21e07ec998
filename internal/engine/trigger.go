package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/nodeflow/internal/domain"
)

// TypeResolver — источник определений типов узлов (каталог).
type TypeResolver interface {
	NodeType(typeID string) (domain.NodeType, bool)
}

// FindTrigger возвращает ID единственного trigger-узла графа.
//
// Узлы неизвестных типов не считаются trigger. Выключенные узлы пропускаются.
func FindTrigger(graph *domain.Graph, types TypeResolver) (string, error) {
	var triggers []string
	for _, n := range graph.Nodes {
		if n.Disabled {
			continue
		}
		nt, ok := types.NodeType(n.TypeID)
		if ok && nt.Category == domain.CategoryTrigger {
			triggers = append(triggers, n.ID)
		}
	}

	switch len(triggers) {
	case 0:
		return "", NewConfigurationError(graph.FlowID, "",
			"No trigger node found in flow. Each flow must have exactly one trigger node.", ErrNoTrigger)
	case 1:
		return triggers[0], nil
	default:
		return "", NewConfigurationError(graph.FlowID, "",
			fmt.Sprintf("Multiple trigger nodes found: [%s]. Each flow must have exactly one trigger node.",
				strings.Join(triggers, ", ")), ErrMultipleTriggers)
	}
}

// ResolveRunOrder определяет trigger и порядок выполнения для запуска.
//
// Если triggerID пуст, используется единственный trigger графа.
// Если задан — узел должен существовать и иметь категорию trigger.
// Пустой порядок возвращается как ConfigurationError.
func ResolveRunOrder(graph *domain.Graph, triggerID string, types TypeResolver) (string, []string, error) {
	if len(graph.Nodes) == 0 {
		return "", nil, NewConfigurationError(graph.FlowID, "", "flow has no nodes", ErrEmptyGraph)
	}

	if triggerID == "" {
		id, err := FindTrigger(graph, types)
		if err != nil {
			return "", nil, err
		}
		triggerID = id
	} else {
		node, ok := graph.Node(triggerID)
		if !ok || node.Disabled {
			return "", nil, NewConfigurationError(graph.FlowID, triggerID,
				"trigger node not found in flow", ErrUnknownNode)
		}
		nt, ok := types.NodeType(node.TypeID)
		if !ok || nt.Category != domain.CategoryTrigger {
			return "", nil, NewConfigurationError(graph.FlowID, triggerID,
				fmt.Sprintf("node type %q is not a trigger", node.TypeID), ErrNotTrigger)
		}
	}

	order := ResolveOrder(triggerID, activeNodes(graph.Nodes), graph.Edges)
	if len(order) == 0 {
		return "", nil, NewConfigurationError(graph.FlowID, triggerID,
			"execution order is empty", ErrEmptyOrder)
	}

	return triggerID, order, nil
}

// activeNodes отбрасывает выключенные узлы.
func activeNodes(nodes []domain.NodeInstance) []domain.NodeInstance {
	active := make([]domain.NodeInstance, 0, len(nodes))
	for _, n := range nodes {
		if !n.Disabled {
			active = append(active, n)
		}
	}
	return active
}
