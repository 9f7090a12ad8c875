package kafka

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// DLQPayload captures enough context to replay or inspect a failed Kafka message.
type DLQPayload struct {
	Topic       string            `json:"topic"`
	Partition   int32             `json:"partition"`
	Offset      int64             `json:"offset"`
	Timestamp   time.Time         `json:"timestamp"`
	KeyBase64   string            `json:"key_base64,omitempty"`
	ValueBase64 string            `json:"value_base64"`
	Headers     map[string]string `json:"headers,omitempty"`
	ContentID   string            `json:"content_id,omitempty"`
	Error       string            `json:"error"`
	Consumer    string            `json:"consumer"`
}

// EncodeDLQMessage serializes a Kafka message into a DLQ-safe payload.
// The content item ID is lifted out of the message so dead-lettered tasks
// can be correlated back to their item without decoding the value.
func EncodeDLQMessage(msg Message, err error, consumer string) ([]byte, error) {
	payload := DLQPayload{
		Topic:       msg.Topic,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		Timestamp:   msg.Timestamp,
		ValueBase64: base64.StdEncoding.EncodeToString(msg.Value),
		Headers:     msg.Headers,
		Consumer:    consumer,
	}

	if len(msg.Key) > 0 {
		payload.KeyBase64 = base64.StdEncoding.EncodeToString(msg.Key)
	}

	if err != nil {
		payload.Error = err.Error()
	}

	payload.ContentID = extractContentID(msg)
	if payload.ContentID != "" {
		if payload.Headers == nil {
			payload.Headers = make(map[string]string, 1)
		}
		payload.Headers["content_id"] = payload.ContentID
	}

	b, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal dlq payload: %w", marshalErr)
	}

	return b, nil
}

func extractContentID(msg Message) string {
	if id := msg.Headers["content_id"]; id != "" {
		return id
	}

	var probe struct {
		ContentID string `json:"content_id"`
		Params    struct {
			ContentID string `json:"content_id"`
		} `json:"params"`
	}
	if json.Unmarshal(msg.Value, &probe) == nil {
		if probe.ContentID != "" {
			return probe.ContentID
		}
		return probe.Params.ContentID
	}
	return ""
}
