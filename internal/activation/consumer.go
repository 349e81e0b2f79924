package activation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/utkarshsingh/money-manager-backend/internal/emailoutbox"
	"github.com/utkarshsingh/money-manager-backend/internal/ledger"
	"github.com/utkarshsingh/money-manager-backend/pkg/bus"
	"github.com/utkarshsingh/money-manager-backend/pkg/config"
	"github.com/utkarshsingh/money-manager-backend/pkg/db/models"
	"github.com/utkarshsingh/money-manager-backend/pkg/enums"
	"github.com/utkarshsingh/money-manager-backend/pkg/logger"
	"github.com/utkarshsingh/money-manager-backend/pkg/metrics"
	"github.com/utkarshsingh/money-manager-backend/pkg/outbox/idempotency"
	"github.com/utkarshsingh/money-manager-backend/pkg/outbox/payloads"
)

const activationConsumer = "activation-email"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// eventIDAttr is the message attribute the relay stamps on every publish. It
// is the dedup key; a message without it is poison.
const eventIDAttr = "eventId"

// Consumer turns activation events into staged email outbox rows. Processing
// a message commits the ledger claim and the email row in one transaction, so
// duplicates either lose the ledger race or never see a partial write.
type Consumer struct {
	db           txRunner
	ledger       ledger.Repository
	emails       emailoutbox.Repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	signals      *bus.Bus
	logg         *logger.Logger
	pipe         *metrics.PipelineMetrics
	activation   config.ActivationConfig
	concurrency  int
}

type ConsumerParams struct {
	DB           txRunner
	Ledger       ledger.Repository
	Emails       emailoutbox.Repository
	Subscription *pubsub.Subscriber
	Idempotency  *idempotency.Manager
	Signals      *bus.Bus
	Logger       *logger.Logger
	Metrics      *metrics.PipelineMetrics
	Activation   config.ActivationConfig
	Concurrency  int
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Emails == nil {
		return nil, fmt.Errorf("email outbox repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("activation subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Consumer{
		db:           params.DB,
		ledger:       params.Ledger,
		emails:       params.Emails,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		signals:      params.Signals,
		logg:         params.Logger,
		pipe:         params.Metrics,
		activation:   params.Activation,
		concurrency:  concurrency,
	}, nil
}

// Run starts the consumer loop until the context is canceled. Rejected
// messages are nacked without requeue semantics on our side; the
// subscription's dead-letter policy moves them to the DLQ topic once delivery
// attempts are exhausted.
func (c *Consumer) Run(ctx context.Context) error {
	c.subscription.ReceiveSettings.NumGoroutines = c.concurrency
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
		if result.stagedID != uuid.Nil && c.signals != nil {
			// Best effort nudge; the sweep covers dropped signals.
			c.signals.Publish(result.stagedID)
		}
	})
}

type processResult struct {
	ack      bool
	nack     bool
	stagedID uuid.UUID
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_id":   msg.Attributes[eventIDAttr],
	})

	if eventType := msg.Attributes["event_type"]; eventType != "" && eventType != string(enums.EventProfileActivation) {
		c.logg.Info(logCtx, "skipping non-activation event")
		c.pipe.IncConsumed("skipped")
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(msg.Attributes[eventIDAttr])
	if err != nil {
		// No usable dedup key; the message can never be processed safely.
		c.logg.Error(logCtx, "missing or invalid event id attribute", err)
		c.pipe.IncConsumed("rejected")
		return processResult{nack: true}
	}

	if c.idempotency.Seen(ctx, activationConsumer, eventID) {
		c.logg.Info(logCtx, "duplicate message ignored")
		c.pipe.IncConsumed("duplicate")
		return processResult{ack: true}
	}

	// Cache miss; the ledger is the authoritative record.
	processed, lookupErr := c.ledger.Exists(ctx, eventID)
	if lookupErr != nil {
		// The insert below still guards against duplicates.
		c.logg.Warn(logCtx, "ledger lookup failed, falling through to claim")
	} else if processed {
		if err := c.idempotency.MarkProcessed(ctx, activationConsumer, eventID); err != nil {
			c.logg.Warn(logCtx, "idempotency cache write failed")
		}
		c.logg.Info(logCtx, "duplicate message ignored")
		c.pipe.IncConsumed("duplicate")
		return processResult{ack: true}
	}

	var event payloads.ProfileActivationEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode activation payload", err)
		c.pipe.IncConsumed("rejected")
		return processResult{nack: true}
	}
	if event.Email == "" {
		c.logg.Error(logCtx, "activation payload missing recipient", nil)
		c.pipe.IncConsumed("rejected")
		return processResult{nack: true}
	}

	subject, body := BuildEmail(c.activation.BaseURL, event.FullName, event.ActivationToken)
	row := models.EmailOutbox{
		ID:        uuid.New(),
		EventID:   eventID,
		Recipient: event.Email,
		Subject:   subject,
		Body:      body,
		Status:    enums.EmailStatusPending,
	}

	duplicate := false
	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := c.ledger.WithTx(tx).Insert(ctx, eventID); err != nil {
			if errors.Is(err, ledger.ErrAlreadyProcessed) {
				duplicate = true
				return err
			}
			return err
		}
		return c.emails.WithTx(tx).Insert(ctx, &row)
	})
	if duplicate {
		if err := c.idempotency.MarkProcessed(ctx, activationConsumer, eventID); err != nil {
			c.logg.Warn(logCtx, "idempotency cache write failed")
		}
		c.logg.Info(logCtx, "duplicate message ignored")
		c.pipe.IncConsumed("duplicate")
		return processResult{ack: true}
	}
	if err != nil {
		// Transient storage failure: nack for redelivery rather than lose the
		// email. The redelivery must re-check the ledger, not the cache.
		if derr := c.idempotency.Delete(ctx, activationConsumer, eventID); derr != nil {
			c.logg.Warn(logCtx, "idempotency cache delete failed")
		}
		c.logg.Error(logCtx, "failed to stage activation email", err)
		c.pipe.IncConsumed("rejected")
		return processResult{nack: true}
	}

	if err := c.idempotency.MarkProcessed(ctx, activationConsumer, eventID); err != nil {
		c.logg.Warn(logCtx, "idempotency cache write failed")
	}

	c.logg.Info(logCtx, "activation event staged in email outbox")
	c.pipe.IncConsumed("processed")
	return processResult{ack: true, stagedID: row.ID}
}
