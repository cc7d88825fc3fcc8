package amqp

import (
	"encoding/json"
	"time"
)

// Reasons a sync request was published, for log correlation.
const (
	ReasonMutation = "mutation"
	ReasonManual   = "manual"
	ReasonSweep    = "sweep"
)

// SyncRequestMessage asks the worker to push the current snapshot for one
// user. It carries only the user key and the data version observed at
// publish time; the worker reads the full state from storage, so a stale
// message is harmless.
type SyncRequestMessage struct {
	UserEmail   string    `json:"userEmail"`
	DataVersion int64     `json:"dataVersion"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

func NewSyncRequestMessage(userEmail string, dataVersion int64, reason string) *SyncRequestMessage {
	return &SyncRequestMessage{
		UserEmail:   userEmail,
		DataVersion: dataVersion,
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON parses a message from JSON bytes.
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
