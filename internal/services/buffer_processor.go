package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/buffer"
	"github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

var errProcessorNotConfigured = errors.New("buffer processor not configured")

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays buffered task writes once the database is reachable again.
type BufferProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	tasks   repository.TaskRepository
	events  usecase.EventPublisher
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	tasks repository.TaskRepository,
	events usecase.EventPublisher,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = usecase.NopPublisher{}
	}

	bp := &BufferProcessor{
		store:   store,
		monitor: monitor,
		tasks:   tasks,
		events:  events,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for a running drain to finish or ctx to expire.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Enqueue persists an operation for later replay.
func (bp *BufferProcessor) Enqueue(ctx context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return errProcessorNotConfigured
	}
	if err := bp.store.Enqueue(item); err != nil {
		return err
	}
	logger.WithRequestID(ctx, bp.logger).Info("operation buffered",
		zap.String("item_id", item.ID),
		zap.String("entity", item.Entity),
		zap.String("operation", item.Operation))
	return nil
}

// Drain replays one batch. It does nothing while the database is offline.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.cfg.Retention > 0 {
		if removed, err := bp.store.Cleanup(time.Now().UTC().Add(-bp.cfg.Retention)); err != nil {
			bp.logger.Warn("buffer cleanup failed", zap.Error(err))
		} else if removed > 0 {
			bp.logger.Warn("expired buffered operations dropped", zap.Int("count", removed))
		}
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	items, err := bp.store.Peek(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := bp.replay(ctx, item)
		switch {
		case err == nil:
			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to purge replayed buffer item", zap.Error(err))
			}
		case domain.IsDomainError(err, domain.ErrCodeConflict):
			bp.logger.Info("buffer item already applied", zap.String("item_id", item.ID))
			_ = bp.store.Remove(item)
		case domain.CodeOf(err) != domain.ErrCodeInternal:
			bp.logger.Warn("dropping buffer item (rejected by store)",
				zap.String("item_id", item.ID), zap.Error(err))
			_ = bp.store.Remove(item)
		case item.Attempts+1 >= bp.cfg.MaxRetries:
			bp.logger.Error("dropping buffer item (max retries reached)",
				zap.String("item_id", item.ID), zap.Error(err))
			_ = bp.store.Remove(item)
		default:
			bp.logger.Warn("buffer item replay failed", zap.String("item_id", item.ID), zap.Error(err))
			if err := bp.store.Retry(item, err); err != nil {
				bp.logger.Error("failed to requeue buffer item", zap.Error(err))
			}
		}
	}
	return nil
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() (int, error) {
	if bp == nil || bp.store == nil {
		return 0, errProcessorNotConfigured
	}
	return bp.store.Size()
}

func (bp *BufferProcessor) replay(ctx context.Context, item buffer.Item) error {
	if item.Entity != buffer.EntityTask {
		return domain.NewError(domain.ErrCodeInvalid, "unsupported entity "+item.Entity)
	}
	if item.Operation != buffer.OperationCreate {
		return domain.NewError(domain.ErrCodeInvalid, "unsupported operation "+item.Operation)
	}

	var task domain.Task
	if err := json.Unmarshal(item.Payload, &task); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "corrupt buffer payload", err)
	}
	created, err := bp.tasks.Create(ctx, &task)
	if err != nil {
		return err
	}

	if err := bp.events.Publish(ctx, usecase.EventTaskCreated, created); err != nil {
		bp.logger.Warn("event publish failed", zap.String("subject", usecase.EventTaskCreated), zap.Error(err))
	}
	return nil
}
