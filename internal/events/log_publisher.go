package events

import (
	"context"

	"github.com/wolfman30/report-ivr/pkg/logging"
)

// LogPublisher records outbox entries in the log. Used when no queue is configured.
type LogPublisher struct {
	logger *logging.Logger
}

func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogPublisher{logger: logger}
}

// Handle implements DeliveryHandler.
func (p *LogPublisher) Handle(_ context.Context, entry OutboxEntry) error {
	p.logger.Info("outbox event",
		"event_id", entry.ID,
		"type", entry.Type,
		"aggregate", entry.Aggregate,
		"payload", string(entry.Payload),
	)
	return nil
}
