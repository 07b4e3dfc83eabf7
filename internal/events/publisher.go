package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing lifecycle events. A nil
// Publisher is valid and publishes nothing, so call sites stay unconditional.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishMemoryStored publishes a memory creation event.
func (p *Publisher) PublishMemoryStored(ctx context.Context, ev MemoryStored) error {
	return p.publish(ctx, SubjectMemoryStored, ev)
}

// PublishMemoryDeleted publishes a memory deletion event.
func (p *Publisher) PublishMemoryDeleted(ctx context.Context, ev MemoryDeleted) error {
	return p.publish(ctx, SubjectMemoryDeleted, ev)
}

// PublishBridgeWritten publishes a session bridge event.
func (p *Publisher) PublishBridgeWritten(ctx context.Context, ev BridgeWritten) error {
	return p.publish(ctx, SubjectBridgeWritten, ev)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	if p == nil || p.js == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
