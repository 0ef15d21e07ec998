package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/shaiso/nodeflow/internal/mq"
	"github.com/shaiso/nodeflow/internal/status"
)

const (
	streamBuffer     = 64
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin проверяет CORS middleware
	CheckOrigin: func(*http.Request) bool { return true },
}

// StatusEvent — сообщение потока статусов.
type StatusEvent struct {
	Type      string    `json:"type"` // "snapshot" или "status"
	Timestamp time.Time `json:"timestamp"`
	mq.NodeStatusPayload
}

// GetNodeStatus возвращает запись выполнения узла.
// GET /api/v1/nodes/{id}/status
func (h *Handler) GetNodeStatus(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")
	Success(w, NodeStatusResponse{NodeID: nodeID, ExecutionRecord: h.store.GetState(nodeID)})
}

// StreamStatus отправляет события статусов узлов через WebSocket.
// GET /api/v1/status/stream?node=...
//
// С параметром node поток ограничен одним узлом и начинается с его
// текущей записи. Медленный клиент теряет события, а не тормозит запуск.
func (h *Handler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	nodeID := r.URL.Query().Get("node")
	logger := requestLogger(r, h.logger)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan status.Event, streamBuffer)
	enqueue := func(ev status.Event) {
		select {
		case events <- ev:
		default:
			logger.Debug("status stream buffer full, dropping event", "node_id", ev.NodeID)
		}
	}

	var unsubscribe func()
	if nodeID != "" {
		unsubscribe = h.store.Subscribe(nodeID, enqueue)
	} else {
		unsubscribe = h.store.SubscribeAll(enqueue)
	}
	defer unsubscribe()

	logger.Debug("status stream opened", "node_id", nodeID, "remote_addr", r.RemoteAddr)

	// Чтение нужно для обработки pong и закрытия соединения клиентом
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("status stream read error", "error", err)
				}
				return
			}
		}
	}()

	if nodeID != "" {
		rec := h.store.GetState(nodeID)
		snapshot := status.Event{NodeID: nodeID, Previous: rec.Status, Record: rec}
		if err := writeEvent(conn, "snapshot", snapshot); err != nil {
			return
		}
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case ev := <-events:
			if err := writeEvent(conn, "status", ev); err != nil {
				logger.Debug("status stream write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, kind string, ev status.Event) error {
	data, err := json.Marshal(StatusEvent{
		Type:              kind,
		Timestamp:         time.Now().UTC(),
		NodeStatusPayload: mq.NodeStatusPayloadFrom(ev),
	})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
