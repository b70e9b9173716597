package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/todo-backend/models"
	"github.com/upb/todo-backend/repositories"
)

// TodoRepository implements the repositories.TodoRepository interface
type TodoRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTodoRepository creates a new todo repository
func NewTodoRepository(db *DB, logger *zap.Logger) repositories.TodoRepository {
	return &TodoRepository{
		db:     db,
		logger: logger,
	}
}

const todoColumns = `todo_id, user_id, created_at, name, due_date, done, attachment_url`

// List returns every todo owned by ownerID ordered by creation time
func (r *TodoRepository) List(ctx context.Context, ownerID string) ([]*models.Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]*models.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating todos: %w", err)
	}

	return todos, nil
}

// Get retrieves a single todo
func (r *TodoRepository) Get(ctx context.Context, ownerID, todoID string) (*models.Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1 AND todo_id = $2
	`

	executor := GetExecutor(ctx, r.db)
	todo, err := scanTodo(executor.QueryRowContext(ctx, query, ownerID, todoID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}

	return todo, nil
}

// Create inserts a new todo
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	query := `
		INSERT INTO todos (` + todoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		todo.TodoID,
		todo.UserID,
		todo.CreatedAt,
		todo.Name,
		todo.DueDate,
		todo.Done,
		todo.AttachmentURL,
	)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}

	r.logger.Debug("todo created", zap.String("todo_id", todo.TodoID), zap.String("user_id", todo.UserID))
	return nil
}

// Update replaces the mutable fields of a todo
func (r *TodoRepository) Update(ctx context.Context, ownerID, todoID string, patch models.TodoUpdate) error {
	query := `
		UPDATE todos
		SET name = $3, due_date = $4, done = $5
		WHERE user_id = $1 AND todo_id = $2
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, ownerID, todoID, patch.Name, patch.DueDate, patch.Done)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}

	if err := requireAffected(result); err != nil {
		return err
	}

	r.logger.Debug("todo updated", zap.String("todo_id", todoID))
	return nil
}

// Delete removes a todo
func (r *TodoRepository) Delete(ctx context.Context, ownerID, todoID string) error {
	query := `DELETE FROM todos WHERE user_id = $1 AND todo_id = $2`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, ownerID, todoID); err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	r.logger.Debug("todo deleted", zap.String("todo_id", todoID))
	return nil
}

// SetAttachmentURL stores the public location of the todo's attachment
func (r *TodoRepository) SetAttachmentURL(ctx context.Context, ownerID, todoID, url string) error {
	query := `
		UPDATE todos
		SET attachment_url = $3
		WHERE user_id = $1 AND todo_id = $2
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, ownerID, todoID, url)
	if err != nil {
		return fmt.Errorf("failed to set attachment url: %w", err)
	}

	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	todo := &models.Todo{}
	var attachment sql.NullString

	err := row.Scan(
		&todo.TodoID,
		&todo.UserID,
		&todo.CreatedAt,
		&todo.Name,
		&todo.DueDate,
		&todo.Done,
		&attachment,
	)
	if err != nil {
		return nil, err
	}

	if attachment.Valid {
		todo.AttachmentURL = &attachment.String
	}
	return todo, nil
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
