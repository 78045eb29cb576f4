package transport

import (
	"strings"
	"time"

	"github.com/fastygo/taskboard/domain"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Normalize trims the identity fields so length rules apply to what gets stored.
func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateTaskRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate  string `json:"dueDate"`
	UserID   string `json:"userId"`
}

type UpdateTaskRequest struct {
	ID          string `json:"id" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=pending completed"`
	CompletedAt string `json:"completedAt"`
	UserID      string `json:"userId"`
}

const dateOnly = "2006-01-02"

// ParseTime accepts RFC3339 timestamps and bare YYYY-MM-DD dates (midnight UTC).
// An empty value yields nil.
func ParseTime(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	if parsed, err := time.Parse(dateOnly, value); err == nil {
		return &parsed, nil
	}
	return nil, domain.NewError(domain.ErrCodeInvalid, field+" must be an RFC3339 timestamp or YYYY-MM-DD date")
}
