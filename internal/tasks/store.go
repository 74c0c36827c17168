package tasks

import (
	"context"
	"errors"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Scope narrows a listing to the rows a viewer may see. A nil AssignedTo
// means all rows (admin view).
type Scope struct {
	AssignedTo *int64
}

// Store persists task rows. Listings are ordered by id descending, newest
// first.
type Store interface {
	Create(ctx context.Context, task Task) (Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	Update(ctx context.Context, task Task) (Task, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, scope Scope) ([]Task, error)
	Close() error
}
