package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/buffer"
	"github.com/fastygo/taskboard/usecase"
)

// BufferBridge exposes the processor to use cases through usecase.OperationBuffer.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferTask(ctx context.Context, operation string, task *domain.Task) error {
	if b == nil || b.processor == nil || task == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return b.processor.Enqueue(ctx, buffer.Item{
		ID:        task.ID,
		OwnerID:   task.UserID,
		Entity:    buffer.EntityTask,
		Operation: operation,
		Payload:   payload,
	})
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
