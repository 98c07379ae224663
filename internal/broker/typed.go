package broker

import (
	"encoding/json"
	"fmt"
)

// PublishJSON marshals v and publishes it to topic.
func PublishJSON(b *Broker, topic string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling message for %s: %w", topic, err)
	}
	return b.Publish(topic, data)
}

// SubscribeJSON subscribes to topic and decodes each message into a new
// T before calling handler. A message that fails to decode is logged at
// debug level by the broker and dropped without calling handler, rather
// than crashing the subscriber (spec.md §7 InputMalformed). The returned
// error reports only a failure to subscribe.
func SubscribeJSON[T any](b *Broker, topic string, handler func(T)) (string, error) {
	return b.Subscribe(topic, func(data []byte) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			b.logger.Debug("dropping malformed message", "topic", topic, "error", err)
			return
		}
		handler(v)
	})
}
