package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the refresh subscription.
const (
	JobTypeWeatherRefresh = "weather_refresh"
	JobTypeHealthCheck    = "health_check"
)

// ErrUnknownJobType is returned for messages with an unrecognised job type.
// Such messages are acknowledged so they are not redelivered.
var ErrUnknownJobType = errors.New("unknown job type")

// RefreshMessage represents a refresh trigger message.
type RefreshMessage struct {
	JobType string `json:"job_type"`

	// CheckOnly makes a health check skip the refresh it would otherwise
	// run when the cache is stale.
	CheckOnly bool `json:"check_only,omitempty"`
}

// Dispatcher runs refresh trigger messages against a RefreshJob.
type Dispatcher struct {
	refreshJob *RefreshJob
	logger     zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{refreshJob: job, logger: logger}
}

// Dispatch parses a message payload and runs the requested job.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parsing message: %w", err)
	}

	switch msg.JobType {
	case JobTypeWeatherRefresh:
		return d.handleWeatherRefresh(ctx)
	case JobTypeHealthCheck:
		return d.handleHealthCheck(ctx, msg)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

func (d *Dispatcher) handleWeatherRefresh(ctx context.Context) error {
	result := d.refreshJob.Run(ctx)
	if result.Err != nil {
		return fmt.Errorf("weather refresh: %w", result.Err)
	}
	return nil
}

func (d *Dispatcher) handleHealthCheck(ctx context.Context, msg RefreshMessage) error {
	d.logger.Debug().Msg("running health check")

	err := d.refreshJob.Healthy(time.Now())
	if err == nil || msg.CheckOnly {
		return err
	}

	d.logger.Warn().Err(err).Msg("weather cache stale, refreshing")
	if result := d.refreshJob.Run(ctx); result.Err != nil {
		return fmt.Errorf("health check failed: %w", result.Err)
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Refreshes are coalesced upstream, so a few outstanding messages suffice.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 2 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.RefreshJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start processes Pub/Sub messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case err == nil:
		logger.Info().
			Dur("duration", time.Since(startTime)).
			Msg("job completed successfully")
		msg.Ack()
	case errors.Is(err, ErrUnknownJobType):
		logger.Warn().Err(err).Msg("ignoring message")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}
