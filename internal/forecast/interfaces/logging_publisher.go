package interfaces

import (
	"context"
	"errors"
	"log"

	"payoutflow/internal/eventing/eventbus"
)

// LoggingPublisher logs forecast events; used when no outbox is configured.
type LoggingPublisher struct {
	logger *log.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// Publish logs the event.
func (p *LoggingPublisher) Publish(ctx context.Context, event any) error {
	_ = ctx
	if p == nil {
		return errors.New("forecast publisher: nil publisher")
	}
	p.logger.Printf("forecast event: type=%s payload=%+v", eventbus.EventType(event), event)
	return nil
}
