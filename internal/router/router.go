package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/pkg/httpcontext"
)

type Handlers struct {
	Auth   *apiHandler.AuthHandler
	Task   *apiHandler.TaskHandler
	Health *apiHandler.HealthHandler
}

// New registers every route and wraps the router with the session gate.
// The gate decides by path prefix, so unknown /api/ paths also require a session.
func New(handlers Handlers, sessionMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) fasthttp.RequestHandler {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	r.POST("/api/auth/register", handlers.Auth.Register)
	r.POST("/api/auth/login", handlers.Auth.Login)
	r.GET("/api/auth/verify", handlers.Auth.Verify)
	r.POST("/api/auth/logout", handlers.Auth.Logout)

	r.GET("/api/tasks", handlers.Task.GetTasks)
	r.POST("/api/tasks", handlers.Task.CreateTask)
	r.PUT("/api/tasks", handlers.Task.UpdateTask)
	r.DELETE("/api/tasks", handlers.Task.DeleteTask)

	handler := r.Handler
	if sessionMiddleware != nil {
		handler = sessionMiddleware(handler)
	}
	return httpcontext.Middleware(handler)
}
