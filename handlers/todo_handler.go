package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/todo-backend/middleware"
	"github.com/upb/todo-backend/models"
	"github.com/upb/todo-backend/services"
	"github.com/upb/todo-backend/utils"
)

// TodoService is the business API behind the todo routes
type TodoService interface {
	ListTodos(ctx context.Context, ownerID string) ([]*models.Todo, error)
	CreateTodo(ctx context.Context, ownerID string, req services.CreateTodoRequest) (*models.Todo, error)
	UpdateTodo(ctx context.Context, ownerID, todoID string, req services.UpdateTodoRequest) error
	DeleteTodo(ctx context.Context, ownerID, todoID string) error
	GenerateUploadURL(ctx context.Context, ownerID, todoID string) (string, error)
}

// TodoHandler serves the todo routes. Every handler scopes by the principal
// placed in the context by middleware.AuthMiddleware.
type TodoHandler struct {
	service TodoService
	logger  *zap.Logger
}

// NewTodoHandler creates a new TodoHandler
func NewTodoHandler(service TodoService, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{
		service: service,
		logger:  logger,
	}
}

// ListResponse is the body of GET /todos
type ListResponse struct {
	Items []*models.Todo `json:"items"`
}

// ItemResponse is the body of POST /todos
type ItemResponse struct {
	Item *models.Todo `json:"item"`
}

// UploadURLResponse is the body of POST /todos/{todoId}/attachment
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
}

// HandleList handles GET /todos
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	todos, err := h.service.ListTodos(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.write(w, http.StatusOK, ListResponse{Items: todos})
}

// HandleCreate handles POST /todos
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req services.CreateTodoRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	todo, err := h.service.CreateTodo(r.Context(), middleware.PrincipalFromContext(r.Context()), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.write(w, http.StatusCreated, ItemResponse{Item: todo})
}

// HandleUpdate handles PATCH /todos/{todoId}
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateTodoRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	ctx := r.Context()
	if err := h.service.UpdateTodo(ctx, middleware.PrincipalFromContext(ctx), chi.URLParam(r, "todoId"), req); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleDelete handles DELETE /todos/{todoId}
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.DeleteTodo(ctx, middleware.PrincipalFromContext(ctx), chi.URLParam(r, "todoId")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleGenerateUploadURL handles POST /todos/{todoId}/attachment
func (h *TodoHandler) HandleGenerateUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uploadURL, err := h.service.GenerateUploadURL(ctx, middleware.PrincipalFromContext(ctx), chi.URLParam(r, "todoId"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.write(w, http.StatusCreated, UploadURLResponse{UploadURL: uploadURL})
}

func (h *TodoHandler) write(w http.ResponseWriter, status int, body interface{}) {
	if err := utils.WriteJSON(w, status, body); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
