package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/utkarshsingh/money-manager-backend/internal/activation"
	"github.com/utkarshsingh/money-manager-backend/internal/cron"
	"github.com/utkarshsingh/money-manager-backend/internal/emailoutbox"
	"github.com/utkarshsingh/money-manager-backend/pkg/bus"
	"github.com/utkarshsingh/money-manager-backend/pkg/config"
	"github.com/utkarshsingh/money-manager-backend/pkg/db"
	"github.com/utkarshsingh/money-manager-backend/pkg/logger"
	"github.com/utkarshsingh/money-manager-backend/pkg/pubsub"
	"github.com/utkarshsingh/money-manager-backend/pkg/redis"
)

type ServiceParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.Client
	Redis     *redis.Client
	PubSub    *pubsub.Client
	Consumer  *activation.Consumer
	Processor *emailoutbox.Processor
	Signals   *bus.Bus
	Sweeper   *cron.Service
}

// Service runs the three delivery paths of the email worker side by side: the
// broker consumer staging rows, the eager loop draining nudges, and the
// scheduled sweep that guarantees delivery.
type Service struct {
	cfg       *config.Config
	logg      *logger.Logger
	db        *db.Client
	redis     *redis.Client
	pubsub    *pubsub.Client
	consumer  *activation.Consumer
	processor *emailoutbox.Processor
	signals   *bus.Bus
	sweeper   *cron.Service
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("activation consumer is required")
	}
	if params.Processor == nil {
		return nil, errors.New("email outbox processor is required")
	}
	if params.Signals == nil {
		return nil, errors.New("signal bus is required")
	}
	if params.Sweeper == nil {
		return nil, errors.New("sweep service is required")
	}

	return &Service{
		cfg:       params.Config,
		logg:      params.Logger,
		db:        params.DB,
		redis:     params.Redis,
		pubsub:    params.PubSub,
		consumer:  params.Consumer,
		processor: params.Processor,
		signals:   params.Signals,
		sweeper:   params.Sweeper,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all email worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.consumer.Run(ctx)
	}()
	go func() {
		errCh <- s.sweeper.Run(ctx)
	}()
	go s.runEagerLoop(ctx)

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "email worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "email worker component stopped unexpectedly", err)
		}
		return err
	}
}

// runEagerLoop drains commit nudges from the consumer. Errors are logged and
// dropped; the row stays pending and the sweep delivers it.
func (s *Service) runEagerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-s.signals.C():
			if !ok {
				return
			}
			if err := s.processor.ProcessOne(ctx, id); err != nil {
				logCtx := s.logg.WithField(ctx, "email_outbox_id", id.String())
				s.logg.Error(logCtx, "eager email processing failed", err)
			}
		}
	}
}
