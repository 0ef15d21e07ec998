package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/nodeflow/internal/domain"
)

// Querier — подмножество pgxpool.Pool, нужное GraphRepo.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// GraphRepo — репозиторий графов flow (node_instances и node_connections).
type GraphRepo struct {
	db Querier
}

// NewGraphRepo создаёт новый GraphRepo.
func NewGraphRepo(db Querier) *GraphRepo {
	return &GraphRepo{db: db}
}

// nodeRow — строка node_instances.
type nodeRow struct {
	ID       string
	TypeID   string
	Label    *string
	Settings []byte
	Data     []byte
	Disabled bool
}

// connectionRow — строка node_connections.
type connectionRow struct {
	ID           string
	SourceNodeID string
	SourcePortID *string
	TargetNodeID string
	TargetPortID *string
}

// nodeData — содержимое колонки data.
type nodeData struct {
	LastExecution *domain.ExecutionRecord `json:"last_execution,omitempty"`
}

// LoadGraph загружает граф flow.
//
// Отключённые узлы и связи, касающиеся их, в граф не попадают.
// Возвращает ErrNotFound, если у flow нет ни одного узла.
func (r *GraphRepo) LoadGraph(ctx context.Context, flowID string) (*domain.Graph, error) {
	nodes, err := r.listNodes(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("flow %s: %w", flowID, ErrNotFound)
	}

	conns, err := r.listConnections(ctx, flowID)
	if err != nil {
		return nil, err
	}

	return assembleGraph(flowID, nodes, conns)
}

// SaveExecution сохраняет последнюю запись выполнения узла в колонку data.
func (r *GraphRepo) SaveExecution(ctx context.Context, nodeID string, rec domain.ExecutionRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal execution record: %w", err)
	}

	query := `
		UPDATE node_instances
		SET data = jsonb_set(COALESCE(data::jsonb, '{}'::jsonb), '{last_execution}', $2::jsonb)::json,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, nodeID, recJSON)
	if err != nil {
		return fmt.Errorf("update node execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
	}
	return nil
}

func (r *GraphRepo) listNodes(ctx context.Context, flowID string) ([]nodeRow, error) {
	query := `
		SELECT id, type_id, label, settings, data, COALESCE(disabled, false)
		FROM node_instances
		WHERE flow_id::text = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []nodeRow
	for rows.Next() {
		var n nodeRow
		if err := rows.Scan(&n.ID, &n.TypeID, &n.Label, &n.Settings, &n.Data, &n.Disabled); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func (r *GraphRepo) listConnections(ctx context.Context, flowID string) ([]connectionRow, error) {
	query := `
		SELECT id, source_node_id, source_port_id, target_node_id, target_port_id
		FROM node_connections
		WHERE flow_id::text = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []connectionRow
	for rows.Next() {
		var c connectionRow
		if err := rows.Scan(&c.ID, &c.SourceNodeID, &c.SourcePortID, &c.TargetNodeID, &c.TargetPortID); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return conns, nil
}

// assembleGraph собирает граф из строк таблиц. Порядок рёбер сохраняется.
func assembleGraph(flowID string, nodes []nodeRow, conns []connectionRow) (*domain.Graph, error) {
	g := &domain.Graph{FlowID: flowID}
	enabled := make(map[string]bool, len(nodes))

	for _, n := range nodes {
		if n.Disabled {
			continue
		}

		node := domain.NodeInstance{
			ID:     n.ID,
			TypeID: n.TypeID,
			Label:  deref(n.Label),
		}
		if len(n.Settings) > 0 && !isJSONNull(n.Settings) {
			if err := json.Unmarshal(n.Settings, &node.Settings); err != nil {
				return nil, fmt.Errorf("unmarshal settings of node %s: %w", n.ID, err)
			}
		}
		if len(n.Data) > 0 && !isJSONNull(n.Data) {
			var data nodeData
			if err := json.Unmarshal(n.Data, &data); err != nil {
				return nil, fmt.Errorf("unmarshal data of node %s: %w", n.ID, err)
			}
			node.LastExecution = data.LastExecution
		}

		g.Nodes = append(g.Nodes, node)
		enabled[n.ID] = true
	}

	for _, c := range conns {
		if !enabled[c.SourceNodeID] || !enabled[c.TargetNodeID] {
			continue
		}
		g.Edges = append(g.Edges, domain.Edge{
			ID:           c.ID,
			SourceNodeID: c.SourceNodeID,
			SourcePortID: deref(c.SourcePortID),
			TargetNodeID: c.TargetNodeID,
			TargetPortID: deref(c.TargetPortID),
		})
	}

	return g, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isJSONNull(b []byte) bool {
	return strings.TrimSpace(string(b)) == "null"
}
