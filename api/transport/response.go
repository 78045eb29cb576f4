package transport

import (
	"github.com/fastygo/taskboard/domain"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SuccessBody acknowledges operations that return no resource.
type SuccessBody struct {
	Success bool `json:"success"`
}

type AuthResponse struct {
	Token string            `json:"token"`
	User  domain.PublicUser `json:"user"`
}

type VerifyResponse struct {
	User domain.PublicUser `json:"user"`
}

type ServiceStatus struct {
	Online bool   `json:"online"`
	Error  string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceStatus `json:"services"`
	Buffer    *BufferStatus            `json:"buffer,omitempty"`
}

type BufferStatus struct {
	Enabled bool `json:"enabled"`
	Pending int  `json:"pending"`
}

func NewError(code domain.ErrorCode, message string) ErrorBody {
	return ErrorBody{Error: message, Code: string(code)}
}
