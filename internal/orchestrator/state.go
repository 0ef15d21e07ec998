package orchestrator

import (
	"maps"
	"sync"
	"time"

	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/status"
)

// RunState — состояние одного запуска в памяти.
//
// Все записи в Store от имени запуска идут через RunState. После закрытия
// запуска (таймаут, отмена, завершение) записи отбрасываются, как и записи
// от узла, который уже не является текущим. Так поздние результаты
// исполнителя и устаревшие update-callback не попадают в Store.
//
// Записи делаются под mu, а события Store доставляются после его снятия,
// поэтому слушатели могут читать RunState (Stats, Current). События
// доставляются в порядке записи через очередь outbox.
type RunState struct {
	RunID     string
	FlowID    string
	Graph     *domain.Graph
	TriggerID string
	Order     []string
	StartedAt time.Time

	store *status.Store

	mu         sync.Mutex
	generation uint64
	current    string
	closed     bool
	results    map[string]*domain.ExecutionResult

	outbox   []*status.Tx
	draining bool
}

// NewRunState создаёт состояние запуска.
func NewRunState(runID string, graph *domain.Graph, triggerID string, order []string, store *status.Store) *RunState {
	return &RunState{
		RunID:     runID,
		FlowID:    graph.FlowID,
		Graph:     graph,
		TriggerID: triggerID,
		Order:     order,
		StartedAt: time.Now(),
		store:     store,
		results:   make(map[string]*domain.ExecutionResult, len(order)),
	}
}

// Begin делает nodeID текущим узлом и возвращает его поколение.
func (s *RunState) Begin(nodeID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.current = nodeID
	return s.generation
}

// End снимает текущий узел. Записи со старым поколением дальше отбрасываются.
func (s *RunState) End(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation == gen {
		s.generation++
		s.current = ""
	}
}

// apply выполняет запись для узла поколения gen.
// Возвращает false, если запись отброшена.
func (s *RunState) apply(nodeID string, gen uint64, write func(status.Writer) error) (bool, error) {
	s.mu.Lock()
	if s.closed || s.generation != gen || s.current != nodeID {
		s.mu.Unlock()
		return false, nil
	}
	tx := s.store.Tx()
	err := write(tx)
	s.deliver(tx)
	return true, err
}

// applyRun выполняет запись уровня запуска (сброс, каскад пропусков).
func (s *RunState) applyRun(write func(status.Writer) error) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, nil
	}
	tx := s.store.Tx()
	err := write(tx)
	s.deliver(tx)
	return true, err
}

// Close закрывает запуск. final выполняется под блокировкой до закрытия,
// с ID узла, который был текущим. Повторный Close ничего не делает.
func (s *RunState) Close(final func(store status.Writer, current string)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	tx := s.store.Tx()
	if final != nil {
		final(tx, s.current)
	}
	s.closed = true
	s.generation++
	s.current = ""
	s.deliver(tx)
	return true
}

// deliver ставит tx в очередь и снимает mu. Вызывается с захваченным mu.
// Очередь разбирает одна горутина, остальные только добавляют в неё.
func (s *RunState) deliver(tx *status.Tx) {
	s.outbox = append(s.outbox, tx)
	if s.draining {
		s.mu.Unlock()
		return
	}

	s.draining = true
	for len(s.outbox) > 0 {
		next := s.outbox[0]
		s.outbox = s.outbox[1:]
		s.mu.Unlock()
		next.Commit()
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

// Closed проверяет, закрыт ли запуск.
func (s *RunState) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Current возвращает текущий узел.
func (s *RunState) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// AddResult сохраняет результат узла.
func (s *RunState) AddResult(nodeID string, res *domain.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[nodeID] = res
}

// Results возвращает копию накопленных результатов.
func (s *RunState) Results() map[string]*domain.ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.results)
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return RunStats{
		TotalNodes:     len(s.Order),
		CompletedNodes: len(s.results),
		CurrentNode:    s.current,
		Elapsed:        time.Since(s.StartedAt),
	}
}

// RunStats — статистика выполнения запуска.
type RunStats struct {
	TotalNodes     int           `json:"total_nodes"`
	CompletedNodes int           `json:"completed_nodes"`
	CurrentNode    string        `json:"current_node,omitempty"`
	Elapsed        time.Duration `json:"elapsed"`
}
