package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/metrics"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxIdleBackoff        = 10 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
	Ordered() bool
}

type outboxRepository interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
	MarkDeadTx(tx *gorm.DB, id uuid.UUID, err error) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// ResumePublish unblocks an ordering key after a failed publish.
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
}

// Service drains outbox_events into Pub/Sub. Rows that cannot be delivered
// are copied to the DLQ and stamped so they are never selected again.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	metrics          *metrics.OutboxMetrics
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			if p := params.PubSub.Publisher(topic); p != nil {
				return gcpPublisher{p}
			}
			return nil
		}
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		metrics:          params.Metrics,
		publisherFactory: factory,
		batchSize:        cmp.Or(max(cfg.BatchSize, 0), defaultBatchSize),
		maxAttempts:      cmp.Or(max(cfg.MaxAttempts, 0), defaultMaxAttempts),
		pollInterval:     cmp.Or(time.Duration(max(cfg.PollIntervalMS, 0))*time.Millisecond, defaultPollInterval),
	}, nil
}

// Run polls until ctx ends. A full batch is followed immediately by the next
// one; an empty batch waits one poll interval; a failed batch backs off.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	pace := newPacer(s.pollInterval, maxIdleBackoff)
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = pace.failed()
		case processed:
			pace.reset()
			continue
		default:
			pace.reset()
			wait = pace.idle()
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
