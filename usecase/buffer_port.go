package usecase

import (
	"context"

	"github.com/fastygo/taskboard/domain"
)

const (
	OperationCreate = "create"
)

// OperationBuffer abstracts the buffer processor so use cases stay storage-agnostic.
type OperationBuffer interface {
	BufferTask(ctx context.Context, operation string, task *domain.Task) error
}
