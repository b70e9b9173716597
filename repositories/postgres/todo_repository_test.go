package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/todo-backend/models"
	"github.com/upb/todo-backend/repositories"
)

var todoRowColumns = []string{"todo_id", "user_id", "created_at", "name", "due_date", "done", "attachment_url"}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return Wrap(sqlDB, zap.NewNop()), mock
}

func TestTodoRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db, zap.NewNop())
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM todos")).
		WithArgs("user-42").
		WillReturnRows(sqlmock.NewRows(todoRowColumns).
			AddRow("t1", "user-42", created, "buy milk", "2024-05-02", false, nil).
			AddRow("t2", "user-42", created.Add(time.Minute), "walk dog", "", true, "https://bucket/t2"))

	todos, err := repo.List(context.Background(), "user-42")
	require.NoError(t, err)
	require.Len(t, todos, 2)

	assert.Equal(t, "t1", todos[0].TodoID)
	assert.Nil(t, todos[0].AttachmentURL)
	assert.True(t, todos[1].Done)
	require.NotNil(t, todos[1].AttachmentURL)
	assert.Equal(t, "https://bucket/t2", *todos[1].AttachmentURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTodoRepository_ListEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("FROM todos")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(todoRowColumns))

	todos, err := repo.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, todos)
	assert.Empty(t, todos)
}

func TestTodoRepository_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTodoRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND todo_id = $2")).
			WithArgs("user-42", "t1").
			WillReturnRows(sqlmock.NewRows(todoRowColumns).
				AddRow("t1", "user-42", time.Now(), "buy milk", "", false, nil))

		todo, err := repo.Get(context.Background(), "user-42", "t1")
		require.NoError(t, err)
		assert.Equal(t, "buy milk", todo.Name)
	})

	t.Run("missing maps to ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTodoRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND todo_id = $2")).
			WithArgs("user-42", "missing").
			WillReturnRows(sqlmock.NewRows(todoRowColumns))

		_, err := repo.Get(context.Background(), "user-42", "missing")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestTodoRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db, zap.NewNop())
	todo := models.NewTodo("user-42", "buy milk", "2024-05-02")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO todos")).
		WithArgs(todo.TodoID, "user-42", todo.CreatedAt, "buy milk", "2024-05-02", false, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), todo))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTodoRepository_CreateError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO todos")).WillReturnError(errors.New("duplicate key"))

	err := repo.Create(context.Background(), models.NewTodo("user-42", "x", ""))
	assert.ErrorContains(t, err, "failed to create todo")
}

func TestTodoRepository_Update(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "other owner or missing", affected: 0, wantErr: repositories.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewTodoRepository(db, zap.NewNop())

			mock.ExpectExec(regexp.QuoteMeta("UPDATE todos")).
				WithArgs("user-42", "t1", "renamed", "2024-06-01", true).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Update(context.Background(), "user-42", "t1", models.TodoUpdate{
				Name: "renamed", DueDate: "2024-06-01", Done: true,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTodoRepository_DeleteIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todos")).
		WithArgs("user-42", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), "user-42", "t1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTodoRepository_SetAttachmentURL(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("SET attachment_url = $3")).
		WithArgs("user-42", "t1", "https://bucket/t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET attachment_url = $3")).
		WithArgs("user-42", "missing", "https://bucket/missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.SetAttachmentURL(context.Background(), "user-42", "t1", "https://bucket/t1"))
	assert.ErrorIs(t, repo.SetAttachmentURL(context.Background(), "user-42", "missing", "https://bucket/missing"), repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_InTransaction(t *testing.T) {
	t.Run("commits and routes queries through the transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		repo := NewTodoRepository(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todos")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			return repo.Delete(ctx, "user-42", "t1")
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDB_HealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	db := Wrap(sqlDB, zap.NewNop())
	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_InitSchema(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS todos")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
