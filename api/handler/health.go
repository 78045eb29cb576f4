package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	"github.com/fastygo/taskboard/pkg/httpcontext"
)

// StatusSource is implemented by *monitor.Monitor.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusSource
}

func NewHealthHandler(mon StatusSource, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()

	payload := transport.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: map[string]transport.ServiceStatus{
			"database": {Online: status.Database, Error: status.DatabaseError},
		},
	}
	if status.CacheEnabled {
		payload.Services["redis"] = transport.ServiceStatus{Online: status.Cache, Error: status.CacheError}
	}
	if status.BufferEnabled {
		payload.Buffer = &transport.BufferStatus{Enabled: status.Buffer, Pending: status.BufferSize}
	}

	code := http.StatusOK
	if !status.Healthy() {
		payload.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.respondJSON(ctx, code, payload)
}
