package models

import (
	"time"

	"github.com/google/uuid"
)

// Todo is a single todo item owned by one authenticated principal
type Todo struct {
	TodoID        string    `json:"todoId" db:"todo_id"`
	UserID        string    `json:"userId" db:"user_id"` // principal id supplied by the authorizer
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	Name          string    `json:"name" db:"name"`
	DueDate       string    `json:"dueDate" db:"due_date"`
	Done          bool      `json:"done" db:"done"`
	AttachmentURL *string   `json:"attachmentUrl" db:"attachment_url"`
}

// TableName returns the table name for the Todo model
func (Todo) TableName() string {
	return "todos"
}

// NewTodo creates a new, not yet done Todo for userID
func NewTodo(userID, name, dueDate string) *Todo {
	return &Todo{
		TodoID:    uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Name:      name,
		DueDate:   dueDate,
		Done:      false,
	}
}

// TodoUpdate holds the fields a caller may change on an existing todo
type TodoUpdate struct {
	Name    string `json:"name"`
	DueDate string `json:"dueDate"`
	Done    bool   `json:"done"`
}
