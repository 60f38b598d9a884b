package messaging

import "context"

// PublisherInterface defines the contract for event publishing
type PublisherInterface interface {
	Publish(ctx context.Context, routingKey string, eventData interface{}) error
	Close() error
}

var (
	_ PublisherInterface = (*Publisher)(nil)
	_ PublisherInterface = (*BreakerPublisher)(nil)
	_ PublisherInterface = NopPublisher{}
)

// NopPublisher drops every event. It stands in when RabbitMQ is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
