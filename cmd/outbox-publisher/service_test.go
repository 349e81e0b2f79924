package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/utkarshsingh/money-manager-backend/pkg/config"
	"github.com/utkarshsingh/money-manager-backend/pkg/db/models"
	"github.com/utkarshsingh/money-manager-backend/pkg/enums"
	"github.com/utkarshsingh/money-manager-backend/pkg/logger"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			activationEvent(t, 0),
			activationEvent(t, 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, dlqRepo, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.retried); got != 1 {
		t.Fatalf("unexpected number of retried rows: %d", got)
	}
	if got := len(repo.sent); got != 1 {
		t.Fatalf("unexpected number of sent rows: %d", got)
	}
	if repo.retried[0] != repo.events[0].ID {
		t.Fatalf("retried row recorded wrong ID")
	}
	if repo.sent[0] != repo.events[1].ID {
		t.Fatalf("sent row recorded wrong ID")
	}
	if got := len(dlqRepo.entries); got != 0 {
		t.Fatalf("expected no dlq entries, got %d", got)
	}
}

func TestServiceProcessBatchPublishesAttributes(t *testing.T) {
	event := activationEvent(t, 2)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, &fakeDLQRepo{}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(pub.messages); got != 1 {
		t.Fatalf("expected one published message, got %d", got)
	}
	msg := pub.messages[0]
	if !bytes.Equal(msg.Data, event.Payload) {
		t.Fatalf("published payload mismatch")
	}
	if msg.Attributes["eventId"] != event.EventID.String() {
		t.Fatalf("eventId attribute mismatch: %q", msg.Attributes["eventId"])
	}
	if msg.Attributes["event_type"] != string(enums.EventProfileActivation) {
		t.Fatalf("event_type attribute mismatch: %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("aggregate_id attribute mismatch: %q", msg.Attributes["aggregate_id"])
	}
}

func TestServiceProcessBatchWritesDLQOnUnknownEventType(t *testing.T) {
	event := activationEvent(t, 0)
	event.EventType = enums.OutboxEventType("mystery_event")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, &fakePublisher{}, dlqRepo, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.EventID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.Payload == nil || !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
	if got := len(repo.failed); got != 1 || repo.failed[0] != event.ID {
		t.Fatalf("expected event marked failed in the same pass")
	}
}

func TestServiceProcessBatchWritesDLQOnMaxRetries(t *testing.T) {
	event := activationEvent(t, 2)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxRetries:     2,
	})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.EventID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.ErrorReason != enums.OutboxDLQReasonMaxRetries {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
	if entry.RetryCount != event.RetryCount {
		t.Fatalf("dlq retry_count mismatch: %d", entry.RetryCount)
	}
	if got := len(repo.failed); got != 1 || repo.failed[0] != event.ID {
		t.Fatalf("expected event marked failed alongside the dlq entry")
	}
	if got := len(repo.retried); got != 0 {
		t.Fatalf("terminal event must not also be marked for retry")
	}
}

func TestServiceProcessBatchRetriesBelowLimit(t *testing.T) {
	event := activationEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxRetries:     2,
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(repo.retried); got != 1 || repo.retried[0] != event.ID {
		t.Fatalf("expected event marked for retry")
	}
	if got := len(dlqRepo.entries); got != 0 {
		t.Fatalf("expected no dlq entries, got %d", got)
	}
}

func TestServiceProcessBatchEmpty(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakePublisher{}, &fakeDLQRepo{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("empty batch must not report processed")
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxRetries:     5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		DLQRepository:    dlq,
		PublisherFactory: func() publisher { return pub },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func activationEvent(tb testing.TB, retryCount int) models.OutboxEvent {
	tb.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		EventType:     enums.EventProfileActivation,
		AggregateType: enums.AggregateProfile,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"email":"jordan@example.com"}`),
		Status:        enums.EventStatusPending,
		RetryCount:    retryCount,
		CreatedAt:     time.Now().UTC(),
	}
}

type fakeRepo struct {
	events  []models.OutboxEvent
	sent    []uuid.UUID
	retried []uuid.UUID
	failed  []uuid.UUID
}

func (f *fakeRepo) FetchPendingTx(tx *gorm.DB, limit int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkSentTx(tx *gorm.DB, id uuid.UUID) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeRepo) MarkRetryTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	f.retried = append(f.retried, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct {
	pinged bool
}

func (f *fakePubSubClient) Ping(context.Context) error {
	f.pinged = true
	return nil
}

func (f *fakePubSubClient) ActivationPublisher() *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
