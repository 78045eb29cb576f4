package task

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

const maxTitleLength = 200

// CreateInput carries the client-controlled fields of a new task.
type CreateInput struct {
	Title    string
	Priority domain.TaskPriority
	DueDate  *time.Time
}

type UseCase struct {
	tasks  repository.TaskRepository
	buffer usecase.OperationBuffer
	events usecase.EventPublisher
	logger *zap.Logger
}

// New wires the task use case. buffer and events are optional.
func New(tasks repository.TaskRepository, buffer usecase.OperationBuffer, events usecase.EventPublisher, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = usecase.NopPublisher{}
	}
	return &UseCase{
		tasks:  tasks,
		buffer: buffer,
		events: events,
		logger: logger,
	}
}

// ListTasks returns userID's tasks, newest first.
func (uc *UseCase) ListTasks(ctx context.Context, userID string, filter repository.TaskFilter) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if filter.Status != "" && !domain.TaskStatus(filter.Status).Valid() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "status must be pending or completed")
	}
	filter.UserID = userID
	return uc.tasks.List(ctx, filter)
}

// CreateTask stores a new pending task owned by userID. The boolean result reports whether
// the store was unreachable and the write was buffered for later replay.
func (uc *UseCase) CreateTask(ctx context.Context, userID string, in CreateInput) (*domain.Task, bool, error) {
	if userID == "" {
		return nil, false, domain.ErrUnauthorized
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, false, domain.NewError(domain.ErrCodeInvalid, "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, false, domain.NewError(domain.ErrCodeInvalid, "title must be at most 200 characters")
	}

	priority := in.Priority
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	if !priority.Valid() {
		return nil, false, domain.NewError(domain.ErrCodeInvalid, "priority must be low, medium or high")
	}

	task := &domain.Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Status:    domain.TaskStatusPending,
		Priority:  priority,
		DueDate:   in.DueDate,
		CreatedAt: time.Now().UTC(),
	}

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if isStoreFailure(err) && uc.shouldBuffer(ctx, usecase.OperationCreate, task) {
			task.UpdatedAt = task.CreatedAt
			return task, true, nil
		}
		return nil, false, err
	}

	uc.publish(ctx, usecase.EventTaskCreated, created)
	return created, false, nil
}

// UpdateStatus moves the task to status on behalf of userID, who must own it.
func (uc *UseCase) UpdateStatus(ctx context.Context, userID, id string, status domain.TaskStatus, completedAt *time.Time) (*domain.Task, error) {
	if id == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "task id is required")
	}
	if !status.Valid() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "status must be pending or completed")
	}

	task, err := uc.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	task.SetStatus(status, completedAt)
	if err := uc.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	uc.publish(ctx, usecase.EventTaskUpdated, task)
	return task, nil
}

// DeleteTask removes the task on behalf of userID, who must own it.
func (uc *UseCase) DeleteTask(ctx context.Context, userID, id string) error {
	if id == "" {
		return domain.NewError(domain.ErrCodeInvalid, "task id is required")
	}

	task, err := uc.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := uc.tasks.Delete(ctx, id); err != nil {
		return err
	}

	uc.publish(ctx, usecase.EventTaskDeleted, map[string]string{"id": task.ID, "userId": task.UserID})
	return nil
}

func (uc *UseCase) owned(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	// Task ids are UUIDs; anything else cannot name an existing task.
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrTaskNotFound
	}
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.OwnedBy(userID) {
		logger.WithRequestID(ctx, uc.logger).Warn("task ownership mismatch",
			zap.String("task_id", id),
			zap.String("user_id", userID))
		return nil, domain.ErrForbidden
	}
	return task, nil
}

func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, task *domain.Task) bool {
	if uc.buffer == nil {
		return false
	}
	log := logger.WithRequestID(ctx, uc.logger)
	if err := uc.buffer.BufferTask(ctx, operation, task); err != nil {
		log.Error("failed to buffer task operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	log.Warn("task operation buffered", zap.String("operation", operation), zap.String("task_id", task.ID))
	return true
}

func (uc *UseCase) publish(ctx context.Context, subject string, payload interface{}) {
	if err := uc.events.Publish(ctx, subject, payload); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// isStoreFailure separates infrastructure errors from classified domain errors.
func isStoreFailure(err error) bool {
	return domain.CodeOf(err) == domain.ErrCodeInternal
}
