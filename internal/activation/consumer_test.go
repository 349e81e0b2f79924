package activation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

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
	"github.com/utkarshsingh/money-manager-backend/pkg/outbox/idempotency"
	"github.com/utkarshsingh/money-manager-backend/pkg/outbox/payloads"
)

func TestConsumerStagesActivationEmail(t *testing.T) {
	ledgerRepo := &fakeLedger{}
	emailRepo := &fakeEmailRepo{}
	consumer := mustConsumer(t, ledgerRepo, emailRepo, &fakeStore{})

	eventID := uuid.New()
	msg := activationMessage(t, eventID, payloads.ProfileActivationEvent{
		EventID:         eventID,
		ProfileID:       uuid.New(),
		Email:           "jordan@example.com",
		FullName:        "Jordan Lee",
		ActivationToken: "tok-123",
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(emailRepo.inserted) != 1 {
		t.Fatalf("expected one staged email, got %d", len(emailRepo.inserted))
	}
	row := emailRepo.inserted[0]
	if result.stagedID != row.ID {
		t.Fatalf("staged ID not reported to caller")
	}
	if row.EventID != eventID {
		t.Fatalf("event_id mismatch: %s", row.EventID)
	}
	if row.Recipient != "jordan@example.com" {
		t.Fatalf("recipient mismatch: %s", row.Recipient)
	}
	if row.Status != enums.EmailStatusPending {
		t.Fatalf("unexpected status: %s", row.Status)
	}
	if !strings.Contains(row.Body, "Hi Jordan Lee,") {
		t.Fatalf("body missing greeting: %q", row.Body)
	}
	if !strings.Contains(row.Body, "/api/v1.0/activate?token=tok-123") {
		t.Fatalf("body missing activation link: %q", row.Body)
	}
	if len(ledgerRepo.inserted) != 1 || ledgerRepo.inserted[0] != eventID {
		t.Fatalf("ledger did not record the event")
	}
}

func TestConsumerAcksCachedDuplicate(t *testing.T) {
	ledgerRepo := &fakeLedger{}
	emailRepo := &fakeEmailRepo{}
	store := &fakeStore{values: map[string]string{}}
	consumer := mustConsumer(t, ledgerRepo, emailRepo, store)

	eventID := uuid.New()
	store.values["mm:idempotency:evt:processed:activation-email:"+eventID.String()] = "1"

	msg := activationMessage(t, eventID, payloads.ProfileActivationEvent{
		EventID: eventID,
		Email:   "jordan@example.com",
	})
	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack for cached duplicate, got %+v", result)
	}
	if len(emailRepo.inserted) != 0 {
		t.Fatalf("duplicate must not stage an email")
	}
	if len(ledgerRepo.inserted) != 0 {
		t.Fatalf("duplicate must not hit the ledger")
	}
}

func TestConsumerAcksLedgerDuplicate(t *testing.T) {
	ledgerRepo := &fakeLedger{insertErr: ledger.ErrAlreadyProcessed}
	emailRepo := &fakeEmailRepo{}
	consumer := mustConsumer(t, ledgerRepo, emailRepo, &fakeStore{})

	eventID := uuid.New()
	msg := activationMessage(t, eventID, payloads.ProfileActivationEvent{
		EventID: eventID,
		Email:   "jordan@example.com",
	})
	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack when ledger claims duplicate, got %+v", result)
	}
	if len(emailRepo.inserted) != 0 {
		t.Fatalf("ledger duplicate must not stage an email")
	}
}

func TestConsumerAcksLedgerKnownEventAndWarmsCache(t *testing.T) {
	eventID := uuid.New()
	ledgerRepo := &fakeLedger{inserted: []uuid.UUID{eventID}}
	emailRepo := &fakeEmailRepo{}
	store := &fakeStore{values: map[string]string{}}
	consumer := mustConsumer(t, ledgerRepo, emailRepo, store)

	msg := activationMessage(t, eventID, payloads.ProfileActivationEvent{
		EventID: eventID,
		Email:   "jordan@example.com",
	})
	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack for ledger-known event, got %+v", result)
	}
	if len(emailRepo.inserted) != 0 {
		t.Fatalf("ledger-known event must not stage an email")
	}
	if len(ledgerRepo.inserted) != 1 {
		t.Fatalf("ledger-known event must not be claimed again")
	}
	key := "mm:idempotency:evt:processed:activation-email:" + eventID.String()
	if store.values[key] == "" {
		t.Fatalf("expected cache warmed for ledger-known event")
	}
}

func TestConsumerNacksMalformedPayload(t *testing.T) {
	consumer := mustConsumer(t, &fakeLedger{}, &fakeEmailRepo{}, &fakeStore{})

	msg := &pubsub.Message{
		ID:         "msg-1",
		Data:       []byte("{not json"),
		Attributes: map[string]string{"eventId": uuid.NewString()},
	}
	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack for malformed payload, got %+v", result)
	}
}

func TestConsumerNacksMissingEventID(t *testing.T) {
	consumer := mustConsumer(t, &fakeLedger{}, &fakeEmailRepo{}, &fakeStore{})

	msg := &pubsub.Message{
		ID:         "msg-2",
		Data:       []byte(`{"email":"jordan@example.com"}`),
		Attributes: map[string]string{},
	}
	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack when eventId attribute is missing, got %+v", result)
	}
}

func TestConsumerNacksMissingRecipient(t *testing.T) {
	emailRepo := &fakeEmailRepo{}
	consumer := mustConsumer(t, &fakeLedger{}, emailRepo, &fakeStore{})

	eventID := uuid.New()
	msg := activationMessage(t, eventID, payloads.ProfileActivationEvent{EventID: eventID})
	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack for payload without recipient, got %+v", result)
	}
	if len(emailRepo.inserted) != 0 {
		t.Fatalf("invalid payload must not stage an email")
	}
}

func TestConsumerNacksOnStorageFailure(t *testing.T) {
	emailRepo := &fakeEmailRepo{insertErr: errors.New("db down")}
	store := &fakeStore{values: map[string]string{}}
	consumer := mustConsumer(t, &fakeLedger{}, emailRepo, store)

	eventID := uuid.New()
	msg := activationMessage(t, eventID, payloads.ProfileActivationEvent{
		EventID: eventID,
		Email:   "jordan@example.com",
	})
	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack on storage failure, got %+v", result)
	}
	key := "mm:idempotency:evt:processed:activation-email:" + eventID.String()
	if len(store.deleted) != 1 || store.deleted[0] != key {
		t.Fatalf("nacked message must clear its cached claim, deleted=%v", store.deleted)
	}
}

func TestConsumerSkipsForeignEventType(t *testing.T) {
	emailRepo := &fakeEmailRepo{}
	consumer := mustConsumer(t, &fakeLedger{}, emailRepo, &fakeStore{})

	msg := &pubsub.Message{
		ID:   "msg-3",
		Data: []byte(`{}`),
		Attributes: map[string]string{
			"eventId":    uuid.NewString(),
			"event_type": "profile_deleted",
		},
	}
	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack for foreign event type, got %+v", result)
	}
	if len(emailRepo.inserted) != 0 {
		t.Fatalf("foreign event must not stage an email")
	}
}

func mustConsumer(t *testing.T, ledgerRepo ledger.Repository, emailRepo emailoutbox.Repository, store *fakeStore) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("failed to build idempotency manager: %v", err)
	}
	consumer, err := NewConsumer(ConsumerParams{
		DB:           &fakeTx{},
		Ledger:       ledgerRepo,
		Emails:       emailRepo,
		Subscription: &pubsub.Subscriber{},
		Idempotency:  manager,
		Signals:      bus.New(4),
		Logger: logger.New(logger.Options{
			ServiceName: "activation-test",
			Output:      io.Discard,
		}),
		Activation: config.ActivationConfig{BaseURL: "https://app.example.com"},
	})
	if err != nil {
		t.Fatalf("failed to build consumer: %v", err)
	}
	return consumer
}

func activationMessage(t *testing.T, eventID uuid.UUID, event payloads.ProfileActivationEvent) *pubsub.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &pubsub.Message{
		ID:   "msg-" + eventID.String(),
		Data: payload,
		Attributes: map[string]string{
			"eventId":    eventID.String(),
			"event_type": string(enums.EventProfileActivation),
		},
	}
}

type fakeTx struct{}

func (f *fakeTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeLedger struct {
	inserted  []uuid.UUID
	insertErr error
}

func (f *fakeLedger) WithTx(tx *gorm.DB) ledger.Repository {
	return f
}

func (f *fakeLedger) Insert(_ context.Context, eventID uuid.UUID) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, eventID)
	return nil
}

func (f *fakeLedger) Exists(_ context.Context, eventID uuid.UUID) (bool, error) {
	for _, id := range f.inserted {
		if id == eventID {
			return true, nil
		}
	}
	return false, nil
}

type fakeEmailRepo struct {
	inserted  []models.EmailOutbox
	insertErr error
}

func (f *fakeEmailRepo) WithTx(tx *gorm.DB) emailoutbox.Repository {
	return f
}

func (f *fakeEmailRepo) Insert(_ context.Context, row *models.EmailOutbox) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *row)
	return nil
}

func (f *fakeEmailRepo) FindByID(_ context.Context, id uuid.UUID) (*models.EmailOutbox, error) {
	for i := range f.inserted {
		if f.inserted[i].ID == id {
			row := f.inserted[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeEmailRepo) FetchSweepable(_ context.Context, limit int) ([]models.EmailOutbox, error) {
	return nil, nil
}

func (f *fakeEmailRepo) MarkSent(_ context.Context, id uuid.UUID) error {
	return nil
}

func (f *fakeEmailRepo) MarkFailed(_ context.Context, id uuid.UUID, cause error) error {
	return nil
}

type fakeStore struct {
	values  map[string]string
	deleted []string
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.values == nil {
		return "", nil
	}
	return f.values[key], nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.values == nil {
		f.values = map[string]string{}
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = "1"
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "mm:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}
