package status

import "github.com/shaiso/nodeflow/internal/domain"

var (
	_ Writer = (*Store)(nil)
	_ Writer = (*Tx)(nil)
)

// Tx — группа записей в Store с отложенной доставкой событий.
//
// Записи видны в Store сразу, а слушатели получают события только
// в Commit. Так запись можно сделать под чужой блокировкой, а
// слушателей вызвать после её снятия.
type Tx struct {
	store  *Store
	events []Event
}

// Tx начинает новую группу записей.
func (s *Store) Tx() *Tx {
	return &Tx{store: s}
}

// SetStatus — как Store.SetStatus, событие откладывается до Commit.
func (t *Tx) SetStatus(nodeID string, next domain.ExecutionStatus, message string) error {
	return t.record(nodeID, setStatus(nodeID, next, message))
}

// SetOutputs — как Store.SetOutputs, событие откладывается до Commit.
func (t *Tx) SetOutputs(nodeID string, outputs, metadata map[string]any) error {
	return t.record(nodeID, setOutputs(nodeID, outputs, metadata))
}

// SetError — как Store.SetError, событие откладывается до Commit.
func (t *Tx) SetError(nodeID, message string) error {
	return t.record(nodeID, setError(nodeID, message))
}

// Reset — как Store.Reset, событие откладывается до Commit.
func (t *Tx) Reset(nodeID string) {
	_ = t.record(nodeID, reset)
}

// GetState читает текущую запись, включая записи этой группы.
func (t *Tx) GetState(nodeID string) domain.ExecutionRecord {
	return t.store.GetState(nodeID)
}

// Pending возвращает число недоставленных событий.
func (t *Tx) Pending() int {
	return len(t.events)
}

// Commit доставляет накопленные события в порядке записи.
func (t *Tx) Commit() {
	events := t.events
	t.events = nil
	for _, ev := range events {
		t.store.notify(ev)
	}
}

func (t *Tx) record(nodeID string, mutate mutation) error {
	ev, err := t.store.write(nodeID, mutate)
	if err != nil {
		return err
	}
	t.events = append(t.events, ev)
	return nil
}
