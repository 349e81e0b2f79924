package cron

import (
	"context"
	"errors"
	"testing"
)

type fakeSweeper struct {
	sent   int
	err    error
	called int
}

func (f *fakeSweeper) SweepOnce(context.Context) (int, error) {
	f.called++
	return f.sent, f.err
}

func TestEmailSweepJobRunsProcessor(t *testing.T) {
	sweeper := &fakeSweeper{sent: 3}
	job, err := NewEmailSweepJob(EmailSweepJobParams{
		Logger:    testLogger(),
		Processor: sweeper,
	})
	if err != nil {
		t.Fatalf("NewEmailSweepJob: %v", err)
	}
	if job.Name() != "email-outbox-sweep" {
		t.Fatalf("unexpected job name: %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.called != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.called)
	}
}

func TestEmailSweepJobPropagatesError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	job, err := NewEmailSweepJob(EmailSweepJobParams{
		Logger:    testLogger(),
		Processor: sweeper,
	})
	if err != nil {
		t.Fatalf("NewEmailSweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
