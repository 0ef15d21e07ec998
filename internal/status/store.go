package status

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/shaiso/nodeflow/internal/domain"
)

// Event — уведомление об изменении записи узла.
type Event struct {
	NodeID   string                 `json:"node_id"`
	Previous domain.ExecutionStatus `json:"previous"`
	Record   domain.ExecutionRecord `json:"record"`
}

// Listener получает события синхронно, в порядке записи.
type Listener func(Event)

type subscriber struct {
	id uint64
	fn Listener
}

// Store — потокобезопасное хранилище записей выполнения по ID узла.
//
// Слушатели вызываются вне блокировки, поэтому могут читать Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.ExecutionRecord

	subMu  sync.RWMutex
	nextID uint64
	byNode map[string][]subscriber
	global []subscriber
}

// NewStore создаёт пустой Store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]domain.ExecutionRecord),
		byNode:  make(map[string][]subscriber),
	}
}

// Writer — операции записи, общие для Store и Tx.
type Writer interface {
	SetStatus(nodeID string, next domain.ExecutionStatus, message string) error
	SetOutputs(nodeID string, outputs, metadata map[string]any) error
	SetError(nodeID, message string) error
	Reset(nodeID string)
	GetState(nodeID string) domain.ExecutionRecord
}

// SetStatus переводит узел в статус next с сообщением.
func (s *Store) SetStatus(nodeID string, next domain.ExecutionStatus, message string) error {
	return s.update(nodeID, setStatus(nodeID, next, message))
}

// SetOutputs завершает узел успешно с выходами и метаданными.
func (s *Store) SetOutputs(nodeID string, outputs, metadata map[string]any) error {
	return s.update(nodeID, setOutputs(nodeID, outputs, metadata))
}

// SetError завершает узел с ошибкой.
func (s *Store) SetError(nodeID, message string) error {
	return s.update(nodeID, setError(nodeID, message))
}

// Reset возвращает узел в PENDING. Разрешён из любого статуса.
func (s *Store) Reset(nodeID string) {
	_ = s.update(nodeID, reset)
}

type mutation func(*domain.ExecutionRecord) error

func setStatus(nodeID string, next domain.ExecutionStatus, message string) mutation {
	return func(r *domain.ExecutionRecord) error {
		if !r.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, nodeID, r.Status, next)
		}
		r.Apply(next, message)
		if next == domain.StatusSkipped || next == domain.StatusRunning {
			r.Error = ""
		}
		return nil
	}
}

func setOutputs(nodeID string, outputs, metadata map[string]any) mutation {
	return func(r *domain.ExecutionRecord) error {
		if !r.Status.CanTransition(domain.StatusSuccess) {
			return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, nodeID, r.Status, domain.StatusSuccess)
		}
		r.Apply(domain.StatusSuccess, "")
		r.Outputs = maps.Clone(outputs)
		r.Metadata = maps.Clone(metadata)
		r.Error = ""
		return nil
	}
}

func setError(nodeID, message string) mutation {
	return func(r *domain.ExecutionRecord) error {
		if !r.Status.CanTransition(domain.StatusError) {
			return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, nodeID, r.Status, domain.StatusError)
		}
		r.MarkFailed(message)
		return nil
	}
}

func reset(r *domain.ExecutionRecord) error {
	*r = domain.NewPendingRecord()
	return nil
}

// GetState возвращает копию записи узла. Неизвестный узел — PENDING.
func (s *Store) GetState(nodeID string) domain.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[nodeID]
	if !ok {
		return domain.NewPendingRecord()
	}
	return r.Clone()
}

// Snapshot возвращает копии записей указанных узлов.
// Без аргументов — все известные узлы.
func (s *Store) Snapshot(nodeIDs ...string) map[string]domain.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(nodeIDs) == 0 {
		out := make(map[string]domain.ExecutionRecord, len(s.records))
		for id, r := range s.records {
			out[id] = r.Clone()
		}
		return out
	}

	out := make(map[string]domain.ExecutionRecord, len(nodeIDs))
	for _, id := range nodeIDs {
		if r, ok := s.records[id]; ok {
			out[id] = r.Clone()
		} else {
			out[id] = domain.NewPendingRecord()
		}
	}
	return out
}

// NodeIDs возвращает отсортированные ID узлов, у которых есть запись.
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribe подписывает fn на события узла. Возвращает функцию отписки.
func (s *Store) Subscribe(nodeID string, fn Listener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.byNode[nodeID] = append(s.byNode[nodeID], subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.byNode[nodeID] = without(s.byNode[nodeID], id)
		if len(s.byNode[nodeID]) == 0 {
			delete(s.byNode, nodeID)
		}
	}
}

// SubscribeAll подписывает fn на события всех узлов.
func (s *Store) SubscribeAll(fn Listener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.global = append(s.global, subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.global = without(s.global, id)
	}
}

func (s *Store) update(nodeID string, mutate mutation) error {
	ev, err := s.write(nodeID, mutate)
	if err != nil {
		return err
	}
	s.notify(ev)
	return nil
}

// write применяет mutate под блокировкой и возвращает событие без доставки.
func (s *Store) write(nodeID string, mutate mutation) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[nodeID]
	if !ok {
		r = domain.NewPendingRecord()
	}
	prev := r.Status
	if err := mutate(&r); err != nil {
		return Event{}, err
	}
	s.records[nodeID] = r
	return Event{NodeID: nodeID, Previous: prev, Record: r.Clone()}, nil
}

func (s *Store) notify(ev Event) {
	s.subMu.RLock()
	listeners := make([]Listener, 0, len(s.byNode[ev.NodeID])+len(s.global))
	for _, sub := range s.byNode[ev.NodeID] {
		listeners = append(listeners, sub.fn)
	}
	for _, sub := range s.global {
		listeners = append(listeners, sub.fn)
	}
	s.subMu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func without(subs []subscriber, id uint64) []subscriber {
	out := subs[:0:0]
	for _, sub := range subs {
		if sub.id != id {
			out = append(out, sub)
		}
	}
	return out
}
