package cron

import (
	"context"
	"fmt"

	"github.com/utkarshsingh/money-manager-backend/pkg/logger"
)

type emailSweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

type EmailSweepJobParams struct {
	Logger    *logger.Logger
	Processor emailSweeper
}

// NewEmailSweepJob wraps the email outbox sweep as a scheduled job. The sweep
// is the durable delivery path; the eager in-process nudge is only an
// optimization on top of it.
func NewEmailSweepJob(params EmailSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("email outbox processor required")
	}
	return &emailSweepJob{
		logg:      params.Logger,
		processor: params.Processor,
	}, nil
}

type emailSweepJob struct {
	logg      *logger.Logger
	processor emailSweeper
}

func (j *emailSweepJob) Name() string { return "email-outbox-sweep" }

func (j *emailSweepJob) Run(ctx context.Context) error {
	sent, err := j.processor.SweepOnce(ctx)
	if err != nil {
		return fmt.Errorf("email outbox sweep: %w", err)
	}
	if sent > 0 {
		logCtx := j.logg.WithField(ctx, "emails_sent", sent)
		j.logg.Info(logCtx, "email outbox sweep complete")
	}
	return nil
}
