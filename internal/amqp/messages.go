package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEventMessage announces one committed ledger batch. It carries only
// identifiers; consumers (the audit worker) re-read the affected child from
// the database, so a stale message can never carry stale amounts.
type LedgerEventMessage struct {
	ChildID   string    `json:"child_id"`
	Kind      string    `json:"kind"`
	TxIDs     []string  `json:"tx_ids"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates an event message for a committed batch.
func NewLedgerEventMessage(childID, kind string, txIDs []string) *LedgerEventMessage {
	return &LedgerEventMessage{
		ChildID:   childID,
		Kind:      kind,
		TxIDs:     txIDs,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
