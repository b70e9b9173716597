package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/todo-backend/models"
	"github.com/upb/todo-backend/repositories"
	"github.com/upb/todo-backend/storage"
	"github.com/upb/todo-backend/utils"
)

// CreateTodoRequest is the body of a create call
type CreateTodoRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	DueDate string `json:"dueDate" validate:"max=64"`
}

// UpdateTodoRequest is the body of an update call
type UpdateTodoRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	DueDate string `json:"dueDate" validate:"max=64"`
	Done    bool   `json:"done"`
}

// TodoService implements todo business logic for an authenticated owner
type TodoService struct {
	todos  repositories.TodoRepository
	txMgr  repositories.TransactionManager
	signer storage.AttachmentSigner
	logger *zap.Logger
}

// NewTodoService creates a new todo service
func NewTodoService(repos *repositories.Repositories, txMgr repositories.TransactionManager, signer storage.AttachmentSigner, logger *zap.Logger) *TodoService {
	return &TodoService{
		todos:  repos.Todos,
		txMgr:  txMgr,
		signer: signer,
		logger: logger,
	}
}

// ListTodos returns every todo owned by ownerID
func (s *TodoService) ListTodos(ctx context.Context, ownerID string) ([]*models.Todo, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}

	todos, err := s.todos.List(ctx, ownerID)
	if err != nil {
		return nil, WrapInternal("unable to list todos", err)
	}
	return todos, nil
}

// CreateTodo stores a new todo for ownerID
func (s *TodoService) CreateTodo(ctx context.Context, ownerID string, req CreateTodoRequest) (*models.Todo, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return nil, validationError(err)
	}

	todo := models.NewTodo(ownerID, req.Name, req.DueDate)
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, WrapInternal("unable to create todo", err)
	}

	s.logger.Info("todo created", zap.String("todo_id", todo.TodoID), zap.String("user_id", ownerID))
	return todo, nil
}

// UpdateTodo replaces the name, due date and done flag of one of ownerID's todos
func (s *TodoService) UpdateTodo(ctx context.Context, ownerID, todoID string, req UpdateTodoRequest) error {
	if ownerID == "" {
		return ErrMissingOwner
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return validationError(err)
	}

	patch := models.TodoUpdate{Name: req.Name, DueDate: req.DueDate, Done: req.Done}
	if err := s.todos.Update(ctx, ownerID, todoID, patch); err != nil {
		return notFoundOrInternal("unable to update todo", err)
	}
	return nil
}

// DeleteTodo removes one of ownerID's todos. A missing todo is not an error.
func (s *TodoService) DeleteTodo(ctx context.Context, ownerID, todoID string) error {
	if ownerID == "" {
		return ErrMissingOwner
	}

	if err := s.todos.Delete(ctx, ownerID, todoID); err != nil {
		return WrapInternal("unable to delete todo", err)
	}
	return nil
}

// GenerateUploadURL presigns an upload for the todo's attachment and records
// the attachment's public location, which is the presigned URL without its query.
func (s *TodoService) GenerateUploadURL(ctx context.Context, ownerID, todoID string) (string, error) {
	if ownerID == "" {
		return "", ErrMissingOwner
	}

	return WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (string, error) {
		if _, err := s.todos.Get(ctx, ownerID, todoID); err != nil {
			return "", notFoundOrInternal("unable to load todo", err)
		}

		uploadURL, err := s.signer.PresignedUploadURL(ctx, todoID)
		if err != nil {
			return "", WrapExternal("unable to generate upload url", err)
		}

		attachmentURL, _, _ := strings.Cut(uploadURL, "?")
		if err := s.todos.SetAttachmentURL(ctx, ownerID, todoID, attachmentURL); err != nil {
			return "", notFoundOrInternal("unable to store attachment url", err)
		}

		s.logger.Info("attachment upload url generated", zap.String("todo_id", todoID), zap.String("user_id", ownerID))
		return uploadURL, nil
	})
}

func validationError(err error) error {
	domainErr := NewDomainError(ErrorTypeValidation, "invalid todo", err)
	for field, reason := range utils.GetValidationFields(err) {
		domainErr.WithDetail(field, reason)
	}
	return domainErr
}

func notFoundOrInternal(message string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return NewDomainError(ErrorTypeNotFound, ErrTodoNotFound.Message, err)
	}
	return WrapInternal(message, err)
}
