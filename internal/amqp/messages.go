package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// InvalidationMessage tells every instance to drop cached collections of
// one session scope. Origin identifies the publishing instance.
type InvalidationMessage struct {
	Origin    string    `json:"origin"`
	Scope     string    `json:"scope"`
	Targets   []string  `json:"targets"`
	Timestamp time.Time `json:"timestamp"`
}

var errMissingScope = errors.New("invalidation message has no scope")

func NewInvalidationMessage(origin, scope string, targets []string) *InvalidationMessage {
	return &InvalidationMessage{
		Origin:    origin,
		Scope:     scope,
		Targets:   append([]string(nil), targets...),
		Timestamp: time.Now(),
	}
}

func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON decodes a message and rejects one without a
// scope.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Scope == "" {
		return nil, errMissingScope
	}
	return &msg, nil
}
