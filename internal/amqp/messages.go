package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kinds of stored rule changes.
const (
	KindOverride     = "override"
	KindDistribution = "distribution"
	KindLabour       = "labour"
	KindFixedCosts   = "fixed_costs"
)

// RulesChangedMessage tells workers that stored rules changed and derived
// snapshots are stale. Key identifies what changed (a line id, a
// distribution key, a month) and may be empty.
type RulesChangedMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Key       string    `json:"key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRulesChangedMessage(kind, key string) *RulesChangedMessage {
	return &RulesChangedMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		Key:       key,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RulesChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RulesChangedMessageFromJSON rejects messages without an id or a known kind.
func RulesChangedMessageFromJSON(data []byte) (*RulesChangedMessage, error) {
	var msg RulesChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message has no id")
	}
	switch msg.Kind {
	case KindOverride, KindDistribution, KindLabour, KindFixedCosts:
	default:
		return nil, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	return &msg, nil
}
