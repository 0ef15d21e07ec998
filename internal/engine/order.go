package engine

import "github.com/shaiso/nodeflow/internal/domain"

// Index — индекс смежности графа flow.
//
// Рёбра хранятся в порядке объявления, поэтому обход детерминирован.
// Рёбра, ссылающиеся на отсутствующие узлы, в индекс не попадают.
type Index struct {
	// nodes — множество известных узлов.
	nodes map[string]bool

	// outgoing — исходящие соседи (nodeID → targets в порядке рёбер).
	outgoing map[string][]string

	// incoming — входящие рёбра (nodeID → edges в порядке объявления).
	incoming map[string][]domain.Edge
}

// NewIndex строит индекс по узлам и рёбрам.
func NewIndex(nodes []domain.NodeInstance, edges []domain.Edge) *Index {
	idx := &Index{
		nodes:    make(map[string]bool, len(nodes)),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]domain.Edge),
	}

	for _, n := range nodes {
		idx.nodes[n.ID] = true
	}

	for _, e := range edges {
		if !idx.nodes[e.SourceNodeID] || !idx.nodes[e.TargetNodeID] {
			continue
		}
		idx.outgoing[e.SourceNodeID] = append(idx.outgoing[e.SourceNodeID], e.TargetNodeID)
		idx.incoming[e.TargetNodeID] = append(idx.incoming[e.TargetNodeID], e)
	}

	return idx
}

// Has проверяет, есть ли узел в индексе.
func (i *Index) Has(nodeID string) bool {
	return i.nodes[nodeID]
}

// Successors возвращает прямых потомков узла (с повторами, если рёбер несколько).
func (i *Index) Successors(nodeID string) []string {
	return i.outgoing[nodeID]
}

// Incoming возвращает входящие рёбра узла.
func (i *Index) Incoming(nodeID string) []domain.Edge {
	return i.incoming[nodeID]
}

// ResolveOrder возвращает линейный порядок выполнения узлов (обход в ширину от trigger).
//
// Каждый достижимый узел встречается ровно один раз, на глубине первого
// обнаружения; trigger всегда первый. Недостижимые узлы не выполняются.
// Циклы безопасны благодаря множеству visited.
//
// Пустой результат (нет trigger в наборе узлов, пустой набор узлов или рёбер)
// вызывающий обязан трактовать как ConfigurationError. Trigger без исходящих
// рёбер в непустом графе даёт [trigger].
func ResolveOrder(triggerID string, nodes []domain.NodeInstance, edges []domain.Edge) []string {
	if triggerID == "" || len(nodes) == 0 || len(edges) == 0 {
		return []string{}
	}

	idx := NewIndex(nodes, edges)
	return idx.ResolveOrder(triggerID)
}

// ResolveOrder выполняет обход в ширину по уже построенному индексу.
func (i *Index) ResolveOrder(triggerID string) []string {
	if !i.nodes[triggerID] {
		return []string{}
	}

	visited := map[string]bool{triggerID: true}
	order := []string{triggerID}
	frontier := []string{triggerID}

	for len(frontier) > 0 {
		next := make([]string, 0)

		for _, nodeID := range frontier {
			for _, target := range i.outgoing[nodeID] {
				if visited[target] {
					continue
				}
				visited[target] = true
				order = append(order, target)
				next = append(next, target)
			}
		}

		frontier = next
	}

	return order
}

// Reachable возвращает множество узлов, достижимых из trigger (включая его).
func (i *Index) Reachable(triggerID string) map[string]bool {
	reachable := make(map[string]bool)
	for _, id := range i.ResolveOrder(triggerID) {
		reachable[id] = true
	}
	return reachable
}
