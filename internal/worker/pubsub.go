package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConfig configures the job subscription.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string

	// MaxOutstanding bounds concurrently processed messages. Default 10.
	MaxOutstanding int

	// MaxDeliveryAttempts drops a job that keeps failing once the
	// subscription's dead-letter policy reports this many deliveries.
	// Zero never drops.
	MaxDeliveryAttempts int

	Processor *JobProcessor
	Logger    zerolog.Logger
}

// PubSubHandler feeds prediction jobs from a subscription to a JobProcessor.
type PubSubHandler struct {
	client       *pubsub.Client
	subscriber   *pubsub.Subscriber
	subscription string
	maxAttempts  int
	processor    *JobProcessor
	logger       zerolog.Logger
}

func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	outstanding := cfg.MaxOutstanding
	if outstanding <= 0 {
		outstanding = 10
	}

	sub := client.Subscriber(cfg.SubscriptionName)
	sub.ReceiveSettings.MaxOutstandingMessages = outstanding
	sub.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:       client,
		subscriber:   sub,
		subscription: cfg.SubscriptionName,
		maxAttempts:  cfg.MaxDeliveryAttempts,
		processor:    cfg.Processor,
		logger:       cfg.Logger.With().Str("subscription", cfg.SubscriptionName).Logger(),
	}, nil
}

// Start blocks receiving messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Int("max_delivery_attempts", h.maxAttempts).Msg("receiving prediction jobs")
	return h.subscriber.Receive(ctx, h.handleMessage)
}

func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	started := time.Now()
	log := h.logger.With().
		Str("message_id", msg.ID).
		Time("published_at", msg.PublishTime).
		Logger()

	disposition, err := h.processor.Process(ctx, msg.Data)
	attempt := deliveryAttempt(msg)

	switch {
	case err != nil:
		log.Error().Err(err).Int("attempt", attempt).Msg("job failed")
	default:
		log.Info().Dur("duration", time.Since(started)).Msg("job completed")
	}

	if settle(disposition, attempt, h.maxAttempts) == Nack {
		msg.Nack()
		return
	}
	if disposition == Nack {
		log.Warn().Int("attempt", attempt).Msg("giving up on job after repeated failures")
	}
	msg.Ack()
}

// deliveryAttempt is 0 when the subscription has no dead-letter policy.
func deliveryAttempt(msg *pubsub.Message) int {
	if msg.DeliveryAttempt == nil {
		return 0
	}
	return *msg.DeliveryAttempt
}

// settle turns a Nack into an Ack once a job has used up its attempts.
func settle(d Disposition, attempt, maxAttempts int) Disposition {
	if d == Nack && maxAttempts > 0 && attempt >= maxAttempts {
		return Ack
	}
	return d
}
