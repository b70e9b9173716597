package repositories

import (
	"context"
	"errors"

	"github.com/upb/todo-backend/models"
)

// ErrNotFound is returned when no row matches both the owner and the id
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes fn within a transaction.
	// It commits if fn succeeds and rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// TodoRepository handles todo data operations. Every method is scoped by
// ownerID, the principal id the authorizer vouched for.
type TodoRepository interface {
	// List returns the owner's todos, oldest first
	List(ctx context.Context, ownerID string) ([]*models.Todo, error)

	// Get returns one todo, or ErrNotFound
	Get(ctx context.Context, ownerID, todoID string) (*models.Todo, error)

	// Create stores a new todo
	Create(ctx context.Context, todo *models.Todo) error

	// Update replaces name, due date and done, or returns ErrNotFound
	Update(ctx context.Context, ownerID, todoID string, patch models.TodoUpdate) error

	// Delete removes a todo. Deleting a missing todo is not an error.
	Delete(ctx context.Context, ownerID, todoID string) error

	// SetAttachmentURL records where the todo's attachment lives, or returns ErrNotFound
	SetAttachmentURL(ctx context.Context, ownerID, todoID, url string) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Todos TodoRepository
}
