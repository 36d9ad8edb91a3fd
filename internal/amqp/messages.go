package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// TransactionEvent announces a committed ledger change. It carries only the
// id and version; consumers reload the record from the database.
type TransactionEvent struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Op        string    `json:"op"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewUpsertEvent(id, owner string, version int64) *TransactionEvent {
	return &TransactionEvent{ID: id, Owner: owner, Op: OpUpsert, Version: version, Timestamp: time.Now()}
}

func NewDeleteEvent(id, owner string, version int64) *TransactionEvent {
	return &TransactionEvent{ID: id, Owner: owner, Op: OpDelete, Version: version, Timestamp: time.Now()}
}

// ToJSON converts the event to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("event without transaction id")
	}
	if msg.Op != OpUpsert && msg.Op != OpDelete {
		return nil, fmt.Errorf("unknown event op %q", msg.Op)
	}
	return &msg, nil
}
