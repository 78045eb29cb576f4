package router

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	sqliteInfra "github.com/fastygo/taskboard/internal/infrastructure/sqlite"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	sqliteRepo "github.com/fastygo/taskboard/repository/sqlite"
	authUC "github.com/fastygo/taskboard/usecase/auth"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

type memoryRevocations struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[tokenID] = true
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[tokenID], nil
}

func newServer(t *testing.T) fasthttp.RequestHandler {
	t.Helper()

	db, err := sqliteInfra.Open(config.DatabaseConfig{SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	users := sqliteRepo.NewUserRepository(db)
	tasks := sqliteRepo.NewTaskRepository(db)
	revoked := &memoryRevocations{ids: make(map[string]bool)}

	tokens := authUC.NewTokenManager("test-secret", "taskboard", time.Hour)
	authUseCase := authUC.New(users, revoked, authUC.NewPasswordHasher(4), tokens, nil, nil)
	taskUseCase := taskUC.New(tasks, nil, nil, nil)

	mon := monitor.New(monitor.Options{Database: monitor.PingFunc(sqlDB.PingContext)}, nil)
	mon.Refresh()

	adapter := httpcontext.NewAdapter(time.Second)
	return New(Handlers{
		Auth:   apiHandler.NewAuthHandler(authUseCase, adapter, nil, false),
		Task:   apiHandler.NewTaskHandler(taskUseCase, adapter, nil),
		Health: apiHandler.NewHealthHandler(mon, adapter, nil),
	}, middleware.Session(authUseCase, adapter, nil))
}

func call(h fasthttp.RequestHandler, method, uri, token string, body interface{}) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != nil {
		raw, _ := json.Marshal(body)
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBody(raw)
	}
	if token != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	h(ctx)
	return ctx
}

func decode(t *testing.T, ctx *fasthttp.RequestCtx, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), dst), string(ctx.Response.Body()))
}

func register(t *testing.T, h fasthttp.RequestHandler, username string) transport.AuthResponse {
	t.Helper()
	ctx := call(h, fasthttp.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret1",
	})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var out transport.AuthResponse
	decode(t, ctx, &out)
	return out
}

func errorCode(t *testing.T, ctx *fasthttp.RequestCtx) string {
	t.Helper()
	var body transport.ErrorBody
	decode(t, ctx, &body)
	return body.Code
}

func TestRegisterLoginVerify(t *testing.T) {
	h := newServer(t)

	ctx := call(h, fasthttp.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret1",
	})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	assert.NotEmpty(t, ctx.Response.Header.Peek(httpcontext.HeaderRequestID))
	cookie := string(ctx.Response.Header.PeekCookie(middleware.CookieName))
	assert.Contains(t, cookie, "HttpOnly")
	assert.Contains(t, cookie, "max-age=3600")

	var registered transport.AuthResponse
	decode(t, ctx, &registered)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "alice", registered.User.Username)
	assert.NotContains(t, string(ctx.Response.Body()), "password")

	ctx = call(h, fasthttp.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "secret1",
	})
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())

	ctx = call(h, fasthttp.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong!"})
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	ctx = call(h, fasthttp.MethodPost, "/api/auth/login", "", map[string]string{"username": "nobody", "password": "wrong!"})
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = call(h, fasthttp.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var loggedIn transport.AuthResponse
	decode(t, ctx, &loggedIn)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	ctx = call(h, fasthttp.MethodGet, "/api/auth/verify", loggedIn.Token, nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var verified transport.VerifyResponse
	decode(t, ctx, &verified)
	assert.Equal(t, "alice@example.com", verified.User.Email)

	ctx = call(h, fasthttp.MethodGet, "/api/auth/verify", "", nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestRegister_InvalidPayload(t *testing.T) {
	h := newServer(t)

	ctx := call(h, fasthttp.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "al", "email": "alice@example.com", "password": "secret1",
	})
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, string(domain.ErrCodeInvalid), errorCode(t, ctx))

	ctx = call(h, fasthttp.MethodPost, "/api/auth/register", "", map[string]string{
		"username": " ab ", "email": "ab@example.com", "password": "secret1",
	})
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, string(domain.ErrCodeInvalid), errorCode(t, ctx))

	raw := &fasthttp.RequestCtx{}
	raw.Request.Header.SetMethod(fasthttp.MethodPost)
	raw.Request.SetRequestURI("/api/auth/login")
	raw.Request.SetBodyString("{not json")
	h(raw)
	assert.Equal(t, fasthttp.StatusBadRequest, raw.Response.StatusCode())
}

func TestTaskLifecycle(t *testing.T) {
	h := newServer(t)
	alice := register(t, h, "alice")

	ctx := call(h, fasthttp.MethodGet, "/api/tasks", alice.Token, nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, "[]", string(ctx.Response.Body()))

	ctx = call(h, fasthttp.MethodPost, "/api/tasks", alice.Token, map[string]string{
		"title": "buy milk", "priority": "high", "dueDate": "2026-11-01",
	})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var created domain.Task
	decode(t, ctx, &created)
	assert.Equal(t, alice.User.ID, created.UserID)
	assert.Equal(t, domain.TaskStatusPending, created.Status)
	require.NotNil(t, created.DueDate)

	ctx = call(h, fasthttp.MethodPut, "/api/tasks", alice.Token, map[string]string{"id": created.ID, "status": "completed"})
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var updated domain.Task
	decode(t, ctx, &updated)
	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	ctx = call(h, fasthttp.MethodGet, "/api/tasks", alice.Token, nil)
	var listed []domain.Task
	decode(t, ctx, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, domain.TaskStatusCompleted, listed[0].Status)

	ctx = call(h, fasthttp.MethodDelete, "/api/tasks?id="+created.ID, alice.Token, nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"success":true}`, string(ctx.Response.Body()))

	ctx = call(h, fasthttp.MethodDelete, "/api/tasks?id="+created.ID, alice.Token, nil)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	ctx = call(h, fasthttp.MethodDelete, "/api/tasks", alice.Token, nil)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestMalformedTaskID(t *testing.T) {
	h := newServer(t)
	alice := register(t, h, "alice")

	ctx := call(h, fasthttp.MethodDelete, "/api/tasks?id=abc", alice.Token, nil)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Equal(t, string(domain.ErrCodeNotFound), errorCode(t, ctx))

	ctx = call(h, fasthttp.MethodPut, "/api/tasks", alice.Token, map[string]string{"id": "abc", "status": "completed"})
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Equal(t, string(domain.ErrCodeNotFound), errorCode(t, ctx))
}

func TestRegister_TrimsUsername(t *testing.T) {
	h := newServer(t)

	ctx := call(h, fasthttp.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "  carol  ", "email": " carol@example.com ", "password": "secret1",
	})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var out transport.AuthResponse
	decode(t, ctx, &out)
	assert.Equal(t, "carol", out.User.Username)
	assert.Equal(t, "carol@example.com", out.User.Email)
}

func TestTaskIsolation(t *testing.T) {
	h := newServer(t)
	alice := register(t, h, "alice")
	bob := register(t, h, "bob")

	ctx := call(h, fasthttp.MethodPost, "/api/tasks", alice.Token, map[string]string{"title": "alice only"})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	var task domain.Task
	decode(t, ctx, &task)

	ctx = call(h, fasthttp.MethodGet, "/api/tasks", bob.Token, nil)
	assert.JSONEq(t, "[]", string(ctx.Response.Body()))

	ctx = call(h, fasthttp.MethodGet, "/api/tasks?userId="+alice.User.ID, bob.Token, nil)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())

	ctx = call(h, fasthttp.MethodPost, "/api/tasks", bob.Token, map[string]string{"title": "sneaky", "userId": alice.User.ID})
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())

	ctx = call(h, fasthttp.MethodPut, "/api/tasks", bob.Token, map[string]string{"id": task.ID, "status": "completed"})
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
	assert.Equal(t, string(domain.ErrCodeForbidden), errorCode(t, ctx))

	ctx = call(h, fasthttp.MethodDelete, "/api/tasks?id="+task.ID, bob.Token, nil)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())

	ctx = call(h, fasthttp.MethodGet, "/api/tasks", alice.Token, nil)
	var listed []domain.Task
	decode(t, ctx, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, domain.TaskStatusPending, listed[0].Status)
}

func TestSessionGate(t *testing.T) {
	h := newServer(t)
	alice := register(t, h, "alice")

	ctx := call(h, fasthttp.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.NotEmpty(t, ctx.Response.Header.Peek(httpcontext.HeaderRequestID))

	ctx = call(h, fasthttp.MethodGet, "/api/tasks", alice.Token+"x", nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	cookieCtx := &fasthttp.RequestCtx{}
	cookieCtx.Request.Header.SetMethod(fasthttp.MethodGet)
	cookieCtx.Request.SetRequestURI("/api/tasks")
	cookieCtx.Request.Header.SetCookie(middleware.CookieName, alice.Token)
	h(cookieCtx)
	assert.Equal(t, fasthttp.StatusOK, cookieCtx.Response.StatusCode())

	ctx = call(h, fasthttp.MethodPost, "/api/auth/logout", alice.Token, nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"success":true}`, string(ctx.Response.Body()))
	assert.Contains(t, string(ctx.Response.Header.PeekCookie(middleware.CookieName)), "expires=")

	ctx = call(h, fasthttp.MethodGet, "/api/tasks", alice.Token, nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = call(h, fasthttp.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestHealth(t *testing.T) {
	h := newServer(t)

	ctx := call(h, fasthttp.MethodGet, "/health", "", nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var body transport.HealthResponse
	decode(t, ctx, &body)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Services["database"].Online)
}
