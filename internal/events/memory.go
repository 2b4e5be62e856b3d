package events

import (
	"context"
	"encoding/json"
	"sync"
)

type Message struct {
	Topic string
	Key   string
	Value map[string]any
}

// MemoryPublisher keeps published events in memory, decoded the way a
// consumer would see them. Err, when set, is returned from every Publish.
type MemoryPublisher struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (m *MemoryPublisher) Publish(_ context.Context, topic, key string, event any) error {
	if m.Err != nil {
		return m.Err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, Message{Topic: topic, Key: key, Value: v})
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

func (m *MemoryPublisher) Messages(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, 0, len(m.msgs))
	for _, msg := range m.msgs {
		if topic == "" || msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}
