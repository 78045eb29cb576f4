package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	appLogger "github.com/fastygo/taskboard/pkg/logger"
)

const (
	// SessionKey is the RequestCtx user value holding the authenticated *domain.Session.
	SessionKey = "session"

	// CookieName carries the session token for browser clients.
	CookieName = "token"

	protectedPrefix = "/api/"
	publicPrefix    = "/api/auth/"
)

// Authenticator validates a raw token and returns the session it encodes.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}

// Session gates every /api/ path outside /api/auth/ behind a valid token.
func Session(auth Authenticator, adapter *httpcontext.Adapter, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if !IsProtected(string(ctx.Path())) {
				next(ctx)
				return
			}

			token := ExtractToken(ctx)
			if token == "" {
				reject(ctx, http.StatusUnauthorized, domain.ErrMissingToken)
				return
			}

			stdCtx, cancel := adapter.Attach(ctx)
			session, err := auth.Authenticate(stdCtx, token)
			cancel()
			if err != nil {
				log := appLogger.WithRequestID(stdCtx, logger)
				if domain.CodeOf(err) == domain.ErrCodeInternal {
					log.Error("session check failed", zap.Error(err))
					reject(ctx, http.StatusInternalServerError, domain.NewError(domain.ErrCodeInternal, "internal server error"))
					return
				}
				log.Debug("session rejected", zap.String("path", string(ctx.Path())), zap.Error(err))
				reject(ctx, http.StatusUnauthorized, err)
				return
			}

			ctx.SetUserValue(SessionKey, session)
			next(ctx)
		}
	}
}

// IsProtected reports whether path requires an authenticated session.
func IsProtected(path string) bool {
	return strings.HasPrefix(path, protectedPrefix) && !strings.HasPrefix(path, publicPrefix)
}

// SessionFrom returns the session attached by Session, if any.
func SessionFrom(ctx *fasthttp.RequestCtx) (*domain.Session, bool) {
	session, ok := ctx.UserValue(SessionKey).(*domain.Session)
	return session, ok && session != nil
}

// ExtractToken reads the bearer token, falling back to the session cookie.
func ExtractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		if token := strings.TrimSpace(header[7:]); token != "" {
			return token
		}
	}
	return string(ctx.Request.Header.Cookie(CookieName))
}

func reject(ctx *fasthttp.RequestCtx, status int, err error) {
	message := err.Error()
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		message = dErr.Message
	}
	body, _ := json.Marshal(transport.NewError(domain.CodeOf(err), message))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
