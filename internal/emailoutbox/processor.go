package emailoutbox

import (
	"context"

	"github.com/google/uuid"

	"github.com/utkarshsingh/money-manager-backend/pkg/db/models"
	"github.com/utkarshsingh/money-manager-backend/pkg/enums"
	pkgerrors "github.com/utkarshsingh/money-manager-backend/pkg/errors"
	"github.com/utkarshsingh/money-manager-backend/pkg/logger"
	"github.com/utkarshsingh/money-manager-backend/pkg/mailer"
	"github.com/utkarshsingh/money-manager-backend/pkg/metrics"
)

// Processor delivers staged emails. ProcessOne handles the eager nudge fired
// right after the consumer commits a row; SweepOnce is the fallback that
// drains anything the nudge missed, including previously failed rows.
type Processor struct {
	repo   Repository
	sender mailer.Sender
	logg   *logger.Logger
	pipe   *metrics.PipelineMetrics
	batch  int
}

type ProcessorParams struct {
	Repo    Repository
	Sender  mailer.Sender
	Logger  *logger.Logger
	Metrics *metrics.PipelineMetrics
	Batch   int
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email outbox repository required")
	}
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email sender required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = 10
	}
	return &Processor{
		repo:   params.Repo,
		sender: params.Sender,
		logg:   params.Logger,
		pipe:   params.Metrics,
		batch:  batch,
	}, nil
}

// ProcessOne attempts delivery for a freshly committed row. Rows that are no
// longer pending are skipped: the sweep may have raced ahead, or the row was
// already sent.
func (p *Processor) ProcessOne(ctx context.Context, id uuid.UUID) error {
	row, err := p.repo.FindByID(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load email outbox row")
	}
	if row == nil || row.Status != enums.EmailStatusPending {
		return nil
	}
	p.sendAndUpdate(ctx, *row)
	return nil
}

// SweepOnce drains one batch of pending and failed rows. Each row is attempted
// independently so one bad recipient cannot stall the batch.
func (p *Processor) SweepOnce(ctx context.Context) (int, error) {
	rows, err := p.repo.FetchSweepable(ctx, p.batch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch sweepable emails")
	}
	sent := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if p.sendAndUpdate(ctx, row) {
			sent++
		}
	}
	return sent, nil
}

func (p *Processor) sendAndUpdate(ctx context.Context, row models.EmailOutbox) bool {
	logCtx := ctx
	if p.logg != nil {
		logCtx = p.logg.WithFields(ctx, map[string]any{
			"email_outbox_id": row.ID.String(),
			"event_id":        row.EventID.String(),
		})
	}

	if err := p.sender.Send(ctx, row.Recipient, row.Subject, row.Body); err != nil {
		p.pipe.IncEmail("failed")
		if p.logg != nil {
			p.logg.Error(logCtx, "activation email send failed", err)
		}
		if markErr := p.repo.MarkFailed(ctx, row.ID, err); markErr != nil && p.logg != nil {
			p.logg.Error(logCtx, "mark email failed", markErr)
		}
		return false
	}

	if err := p.repo.MarkSent(ctx, row.ID); err != nil {
		// The mail went out but the status write failed; the sweep will retry
		// and the recipient may see a duplicate. At-least-once is the contract.
		p.pipe.IncEmail("failed")
		if p.logg != nil {
			p.logg.Error(logCtx, "mark email sent", err)
		}
		return false
	}

	p.pipe.IncEmail("sent")
	if p.logg != nil {
		p.logg.Info(logCtx, "activation email sent")
	}
	return true
}
