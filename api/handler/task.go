package handler

import (
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/repository"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List the caller's tasks
// @Tags tasks
// @Router /api/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}

	args := ctx.QueryArgs()
	if !h.sameUser(ctx, session, string(args.Peek("userId"))) {
		return
	}

	filter := repository.TaskFilter{
		Status: string(args.Peek("status")),
		Limit:  parseInt(string(args.Peek("limit")), 0),
		Offset: parseInt(string(args.Peek("offset")), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, session.UserID, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	h.respondJSON(ctx, http.StatusOK, tasks)
}

// @Summary Create a task for the caller
// @Tags tasks
// @Router /api/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}

	var req transport.CreateTaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	if !h.sameUser(ctx, session, req.UserID) {
		return
	}

	due, err := transport.ParseTime("dueDate", req.DueDate)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, buffered, err := h.uc.CreateTask(stdCtx, session.UserID, taskUC.CreateInput{
		Title:    req.Title,
		Priority: domain.TaskPriority(req.Priority),
		DueDate:  due,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	status := http.StatusCreated
	if buffered {
		status = http.StatusAccepted
	}
	h.respondJSON(ctx, status, created)
}

// @Summary Change a task's status
// @Tags tasks
// @Router /api/tasks [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}

	var req transport.UpdateTaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	if !h.sameUser(ctx, session, req.UserID) {
		return
	}

	completedAt, err := transport.ParseTime("completedAt", req.CompletedAt)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.UpdateStatus(stdCtx, session.UserID, req.ID, domain.TaskStatus(req.Status), completedAt)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, updated)
}

// @Summary Delete a task
// @Tags tasks
// @Router /api/tasks [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, session.UserID, string(ctx.QueryArgs().Peek("id"))); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.SuccessBody{Success: true})
}

// sameUser rejects requests that name a user other than the session's.
func (h *TaskHandler) sameUser(ctx *fasthttp.RequestCtx, session *domain.Session, claimed string) bool {
	if claimed == "" || claimed == session.UserID {
		return true
	}
	h.logger.Warn("user id mismatch",
		zap.String("request_id", httpcontext.RequestID(ctx)),
		zap.String("session_user", session.UserID),
		zap.String("claimed_user", claimed))
	h.respondError(ctx, domain.ErrForbidden)
	return false
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
