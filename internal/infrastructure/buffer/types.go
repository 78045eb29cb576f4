package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityTask = "task"

	OperationCreate = "create"
)

// Item is a write that could not reach the primary store and waits for replay.
type Item struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	QueuedAt  time.Time       `json:"queued_at"`
	// FirstQueuedAt survives retries and drives retention.
	FirstQueuedAt time.Time `json:"first_queued_at"`

	key []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.QueuedAt.IsZero() {
		i.QueuedAt = time.Now().UTC()
	}
	if i.FirstQueuedAt.IsZero() {
		i.FirstQueuedAt = i.QueuedAt
	}
}

func (i Item) bufferedSince() time.Time {
	if i.FirstQueuedAt.IsZero() {
		return i.QueuedAt
	}
	return i.FirstQueuedAt
}
