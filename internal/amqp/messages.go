package amqp

import (
	"encoding/json"
	"time"

	"timesheet/internal/core"
)

// EntryChangeMessage is the change event published after every entry
// mutation. Before and After are full snapshots; a nil Before means
// creation, a nil After deletion. The aggregator needs both sides to
// compute the summary delta, including month moves.
type EntryChangeMessage struct {
	EntryID   string      `json:"entryId"`
	Before    *core.Entry `json:"before,omitempty"`
	After     *core.Entry `json:"after,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewEntryChangeMessage(entryID string, before, after *core.Entry) *EntryChangeMessage {
	return &EntryChangeMessage{
		EntryID:   entryID,
		Before:    before,
		After:     after,
		Timestamp: time.Now(),
	}
}

func (m *EntryChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryChangeMessageFromJSON(data []byte) (*EntryChangeMessage, error) {
	var msg EntryChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
