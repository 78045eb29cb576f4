package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	appLogger "github.com/fastygo/taskboard/pkg/logger"
)

const internalErrorMessage = "internal server error"

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	stdCtx, cancel := context.WithCancel(context.Background())
	return appLogger.ContextWithRequestID(stdCtx, httpcontext.RequestID(ctx)), cancel
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(transport.NewError(domain.ErrCodeInternal, internalErrorMessage))
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)

	message := internalErrorMessage
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", httpcontext.RequestID(ctx)),
			zap.String("method", string(ctx.Method())),
			zap.String("path", string(ctx.Path())),
			zap.String("remote_addr", ctx.RemoteAddr().String()),
			zap.String("user_agent", string(ctx.Request.Header.UserAgent())),
			zap.Error(err))
	} else {
		var dErr *domain.Error
		if errors.As(err, &dErr) {
			message = dErr.Message
		}
	}
	h.respondJSON(ctx, status, transport.NewError(code, message))
}

type normalizer interface {
	Normalize()
}

// decode unmarshals, normalizes and validates the request body into dst.
func (h baseHandler) decode(ctx *fasthttp.RequestCtx, dst interface{}) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.Normalize()
	}
	if err := transport.Validate(dst); err != nil {
		h.respondError(ctx, err)
		return false
	}
	return true
}

// session returns the caller's session or answers 401 when none is attached.
func (h baseHandler) session(ctx *fasthttp.RequestCtx) (*domain.Session, bool) {
	session, ok := middleware.SessionFrom(ctx)
	if !ok {
		h.respondError(ctx, domain.ErrMissingToken)
	}
	return session, ok
}

func mapError(err error) (int, domain.ErrorCode) {
	switch code := domain.CodeOf(err); code {
	case domain.ErrCodeInvalid:
		return http.StatusBadRequest, code
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized, code
	case domain.ErrCodeForbidden:
		return http.StatusForbidden, code
	case domain.ErrCodeNotFound:
		return http.StatusNotFound, code
	case domain.ErrCodeConflict:
		return http.StatusConflict, code
	default:
		return http.StatusInternalServerError, domain.ErrCodeInternal
	}
}
