package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	authUC "github.com/fastygo/taskboard/usecase/auth"
)

type AuthHandler struct {
	baseHandler
	uc           *authUC.UseCase
	secureCookie bool
}

// NewAuthHandler builds the auth endpoints. secureCookie marks the session cookie Secure.
func NewAuthHandler(uc *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		baseHandler:  newBaseHandler(adapter, logger),
		uc:           uc,
		secureCookie: secureCookie,
	}
}

// @Summary Create an account and start a session
// @Tags auth
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(ctx *fasthttp.RequestCtx) {
	var req transport.RegisterRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Register(stdCtx, req.Username, req.Email, req.Password)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.setSessionCookie(ctx, result.Token)
	h.respondJSON(ctx, http.StatusCreated, transport.AuthResponse{Token: result.Token, User: result.User})
}

// @Summary Start a session
// @Tags auth
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Login(stdCtx, req.Username, req.Password)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.setSessionCookie(ctx, result.Token)
	h.respondJSON(ctx, http.StatusOK, transport.AuthResponse{Token: result.Token, User: result.User})
}

// @Summary Resolve the current token to its user
// @Tags auth
// @Router /api/auth/verify [get]
func (h *AuthHandler) Verify(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.uc.VerifyToken(stdCtx, middleware.ExtractToken(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.VerifyResponse{User: *user})
}

// @Summary End the current session
// @Tags auth
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Logout(stdCtx, middleware.ExtractToken(ctx)); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.clearSessionCookie(ctx)
	h.respondJSON(ctx, http.StatusOK, transport.SuccessBody{Success: true})
}

func (h *AuthHandler) setSessionCookie(ctx *fasthttp.RequestCtx, token string) {
	cookie := h.cookie(token)
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetMaxAge(int(h.uc.TokenTTL() / time.Second))
	ctx.Response.Header.SetCookie(cookie)
}

func (h *AuthHandler) clearSessionCookie(ctx *fasthttp.RequestCtx) {
	cookie := h.cookie("")
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetExpire(fasthttp.CookieExpireDelete)
	ctx.Response.Header.SetCookie(cookie)
}

func (h *AuthHandler) cookie(value string) *fasthttp.Cookie {
	cookie := fasthttp.AcquireCookie()
	cookie.SetKey(middleware.CookieName)
	cookie.SetValue(value)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	cookie.SetSecure(h.secureCookie)
	return cookie
}
