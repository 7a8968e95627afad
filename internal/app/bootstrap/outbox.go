package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/report-ivr/internal/config"
	"github.com/wolfman30/report-ivr/internal/events"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

// BuildOutboxDeliverer relays committed-report events to SQS, or to the log when no queue is configured.
// It returns nil without a database.
func BuildOutboxDeliverer(pool *pgxpool.Pool, sqsClient *sqs.Client, cfg *appconfig.Config, logger *logging.Logger) *events.Deliverer {
	if pool == nil || cfg == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	var handler events.DeliveryHandler
	if queueURL := strings.TrimSpace(cfg.ReportsQueueURL); queueURL != "" && sqsClient != nil {
		handler = events.NewSQSPublisher(sqsClient, queueURL)
		logger.Info("outbox delivery to sqs enabled", "queue_url", queueURL)
	} else {
		handler = events.NewLogPublisher(logger)
		logger.Info("outbox delivery to log enabled")
	}

	return events.NewDeliverer(events.NewOutboxStore(pool), handler, logger).
		WithInterval(cfg.OutboxPollInterval)
}
