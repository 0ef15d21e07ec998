package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/nodeflow/internal/domain"
)

// ParseGraphJSON парсит граф flow из JSON.
func ParseGraphJSON(data []byte) (*domain.Graph, error) {
	var g domain.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph json: %w", err)
	}
	normalizeEdges(&g)
	return &g, nil
}

// ParseGraphYAML парсит граф flow из YAML.
func ParseGraphYAML(data []byte) (*domain.Graph, error) {
	var g domain.Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph yaml: %w", err)
	}
	normalizeEdges(&g)
	return &g, nil
}

// LoadGraphFile читает граф из файла. Формат определяется по расширению
// (.yaml/.yml — YAML, остальное — JSON).
func LoadGraphFile(path string) (*domain.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}

	var g *domain.Graph
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		g, err = ParseGraphYAML(data)
	default:
		g, err = ParseGraphJSON(data)
	}
	if err != nil {
		return nil, err
	}

	if g.FlowID == "" {
		g.FlowID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return g, nil
}

// normalizeEdges проставляет ID рёбрам, у которых он не задан.
func normalizeEdges(g *domain.Graph) {
	for i := range g.Edges {
		if g.Edges[i].ID == "" {
			g.Edges[i].ID = fmt.Sprintf("edge-%d", i+1)
		}
	}
}

// Validate выполняет структурную валидацию графа.
//
// Проверяет:
// - Наличие узлов
// - Непустые и уникальные ID узлов
// - Известность типов узлов (если types != nil)
// - Ссылки рёбер на существующие узлы
func Validate(g *domain.Graph, types TypeResolver) error {
	if g == nil || len(g.Nodes) == 0 {
		return NewConfigurationError("", "", "flow has no nodes", ErrEmptyGraph)
	}

	nodeIDs := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		node := &g.Nodes[i]

		if node.ID == "" {
			return NewConfigurationError(g.FlowID, "",
				fmt.Sprintf("node %d has empty ID", i), ErrEmptyNodeID)
		}

		if nodeIDs[node.ID] {
			return NewConfigurationError(g.FlowID, node.ID,
				fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID)
		}
		nodeIDs[node.ID] = true

		if types != nil {
			if _, ok := types.NodeType(node.TypeID); !ok {
				return NewConfigurationError(g.FlowID, node.ID,
					fmt.Sprintf("unknown node type: %s", node.TypeID), ErrUnknownNodeType)
			}
		}
	}

	for _, e := range g.Edges {
		if !nodeIDs[e.SourceNodeID] {
			return NewConfigurationError(g.FlowID, e.SourceNodeID,
				fmt.Sprintf("edge %s references unknown source node", e.ID), ErrUnknownNode)
		}
		if !nodeIDs[e.TargetNodeID] {
			return NewConfigurationError(g.FlowID, e.TargetNodeID,
				fmt.Sprintf("edge %s references unknown target node", e.ID), ErrUnknownNode)
		}
	}

	return nil
}
