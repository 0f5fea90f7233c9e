// Package outbox relays events written to the outbox table to RabbitMQ.
package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/storage"
	"ats-scorer-go/internal/storage/models"
	"ats-scorer-go/internal/tracing"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	defaultMaxRetryCount   = 5
)

// Publisher sends a message body to an exchange.
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// MessageRelay polls the outbox table and publishes pending messages.
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	done            chan struct{}
	stopped         chan struct{}
	tracer          trace.Tracer
}

type Option func(*MessageRelay)

func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

func NewMessageRelay(db *gorm.DB, publisher Publisher, logger zerolog.Logger, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger.With().Str("component", "outbox_relay").Logger(),
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		maxRetries:      defaultMaxRetryCount,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
		tracer:          otel.Tracer("outbox-relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start polls in the background until Stop is called.
func (r *MessageRelay) Start() {
	r.logger.Info().Dur("interval", r.pollingInterval).Msg("message relay starting")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		defer close(r.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Info().Msg("message relay stopped")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(context.Background()); err != nil {
					r.logger.Error().Err(err).Msg("process pending outbox messages")
				}
			}
		}
	}()
}

// Stop signals the poller and waits for the current batch to finish.
func (r *MessageRelay) Stop() {
	close(r.done)
	<-r.stopped
}

// processPendingMessages publishes one batch inside a transaction. Rows are
// locked with SKIP LOCKED so several relays can run side by side.
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	messages, err := storage.PendingOutbox(tx, r.batchSize)
	if err != nil {
		return err
	}
	// no span for empty polls
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))),
	)
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		if err != nil {
			r.logger.Warn().Err(err).
				Uint64("message_id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retries", msg.RetryCount+1).
				Msg("publish outbox message")
			tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		}
		applyPublishResult(msg, err, r.maxRetries, time.Now())

		if err := tx.WithContext(ctx).Save(msg).Error; err != nil {
			// the batch rolls back and is picked up again next poll
			return err
		}
	}
	return tx.Commit().Error
}

// applyPublishResult moves a message to SENT, or counts a retry and gives
// up with FAILED after maxRetries attempts.
func applyPublishResult(msg *models.OutboxMessage, err error, maxRetries int, now time.Time) {
	if err != nil {
		msg.RetryCount++
		msg.ErrorMessage = err.Error()
		if msg.RetryCount >= maxRetries {
			msg.Status = constants.OutboxFailed
		}
		return
	}
	msg.Status = constants.OutboxSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}
