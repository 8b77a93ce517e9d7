package amqp

import (
	"encoding/json"
	"time"
)

// FlushCompletedMessage announces that a flush drained part of the
// pending mutation queue. Consumers that mirror the backend state can
// use it to refresh without polling.
type FlushCompletedMessage struct {
	Flushed   int       `json:"flushed"`
	Remaining int       `json:"remaining"`
	Timestamp time.Time `json:"timestamp"`
}

func NewFlushCompletedMessage(flushed, remaining int) *FlushCompletedMessage {
	return &FlushCompletedMessage{
		Flushed:   flushed,
		Remaining: remaining,
		Timestamp: time.Now(),
	}
}

func (m *FlushCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func FlushCompletedMessageFromJSON(data []byte) (*FlushCompletedMessage, error) {
	var msg FlushCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
