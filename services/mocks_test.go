package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upb/todo-backend/models"
	"github.com/upb/todo-backend/repositories"
)

// MockTransactionManager is a mock implementation of TransactionManager
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// MockTransaction is a mock implementation of Transaction
type MockTransaction struct {
	mock.Mock
	ctx        context.Context
	committed  bool
	rolledback bool
}

func newMockTransaction(ctx context.Context) *MockTransaction {
	return &MockTransaction{ctx: ctx}
}

func (m *MockTransaction) Commit() error {
	args := m.Called()
	m.committed = true
	return args.Error(0)
}

func (m *MockTransaction) Rollback() error {
	args := m.Called()
	m.rolledback = true
	return args.Error(0)
}

func (m *MockTransaction) Context() context.Context {
	return m.ctx
}

// MockTodoRepository is a mock implementation of TodoRepository
type MockTodoRepository struct {
	mock.Mock
}

func (m *MockTodoRepository) List(ctx context.Context, ownerID string) ([]*models.Todo, error) {
	args := m.Called(ctx, ownerID)
	todos, _ := args.Get(0).([]*models.Todo)
	return todos, args.Error(1)
}

func (m *MockTodoRepository) Get(ctx context.Context, ownerID, todoID string) (*models.Todo, error) {
	args := m.Called(ctx, ownerID, todoID)
	todo, _ := args.Get(0).(*models.Todo)
	return todo, args.Error(1)
}

func (m *MockTodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	return m.Called(ctx, todo).Error(0)
}

func (m *MockTodoRepository) Update(ctx context.Context, ownerID, todoID string, patch models.TodoUpdate) error {
	return m.Called(ctx, ownerID, todoID, patch).Error(0)
}

func (m *MockTodoRepository) Delete(ctx context.Context, ownerID, todoID string) error {
	return m.Called(ctx, ownerID, todoID).Error(0)
}

func (m *MockTodoRepository) SetAttachmentURL(ctx context.Context, ownerID, todoID, url string) error {
	return m.Called(ctx, ownerID, todoID, url).Error(0)
}

// MockAttachmentSigner is a mock implementation of storage.AttachmentSigner
type MockAttachmentSigner struct {
	mock.Mock
}

func (m *MockAttachmentSigner) PresignedUploadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}
