package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/mircoferri/taskhub/internal/auth"
	"github.com/mircoferri/taskhub/internal/cache"
	"github.com/mircoferri/taskhub/internal/directory"
	"github.com/mircoferri/taskhub/internal/hub"
	"github.com/mircoferri/taskhub/internal/identity"
	"github.com/mircoferri/taskhub/internal/observability"
)

// TasksAdminCacheKey and the per-user keys below are invalidated on every
// mutation for compatibility with deployments that populate them; this
// service itself never reads them.
const TasksAdminCacheKey = "tasks_admin"

func tasksUserCacheKey(userID int64) string {
	return fmt.Sprintf("tasks_user_%d", userID)
}

// Fields a non-admin assignee may change on their own task.
var assigneeFields = map[string]struct{}{
	"is_completed":          {},
	"is_approval_requested": {},
}

// CreateInput carries the fields accepted when an admin creates a task.
type CreateInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	DueDate     Date     `json:"due_date"`
	AssignedTo  int64    `json:"assigned_to"`
}

// Service is the permission-gated mutation layer over the task store. Every
// successful mutation invalidates the affected cache keys before handing the
// outcome to the dispatcher.
type Service struct {
	store      Store
	idstore    identity.Store
	cache      cache.Cache
	dispatcher *Dispatcher
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewService(store Store, idstore identity.Store, c cache.Cache, dispatcher *Dispatcher, metrics *observability.Metrics) *Service {
	return &Service{
		store:      store,
		idstore:    idstore,
		cache:      c,
		dispatcher: dispatcher,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Create persists a new task assigned by the calling admin. The assignee
// must exist and hold the user role.
func (s *Service) Create(ctx context.Context, ident auth.Identity, in CreateInput) (Task, error) {
	task, err := s.create(ctx, ident, in)
	s.countMutation("create", err)
	return task, err
}

func (s *Service) create(ctx context.Context, ident auth.Identity, in CreateInput) (Task, error) {
	if !ident.Authenticated {
		return Task{}, auth.ErrUnauthorized
	}
	if !ident.IsAdmin() {
		return Task{}, fmt.Errorf("%w: only admin users can create tasks", auth.ErrForbidden)
	}
	if in.Title == "" {
		return Task{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.DueDate.IsZero() {
		return Task{}, fmt.Errorf("%w: due_date is required", ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return Task{}, fmt.Errorf("%w: priority must be low, medium, or high", ErrInvalidInput)
	}
	if in.AssignedTo == 0 {
		return Task{}, fmt.Errorf("%w: please assign this task to someone", ErrInvalidInput)
	}
	exists, err := s.idstore.UserExists(ctx, in.AssignedTo)
	if err != nil {
		return Task{}, err
	}
	if !exists {
		return Task{}, fmt.Errorf("%w: assigned user does not exist", ErrInvalidInput)
	}
	eligible, err := s.idstore.UserInRole(ctx, in.AssignedTo, auth.GroupUser)
	if err != nil {
		return Task{}, err
	}
	if !eligible {
		return Task{}, fmt.Errorf("%w: assigned user is not eligible", ErrInvalidInput)
	}

	now := s.now().UTC()
	assigner := ident.UserID
	task := Task{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		AssignedTo:  in.AssignedTo,
		AssignedBy:  &assigner,
		AssignedAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.store.Create(ctx, task)
	if err != nil {
		return Task{}, err
	}

	s.invalidate(ctx,
		directory.UserListCacheKey, directory.AdminListCacheKey,
		TasksAdminCacheKey, tasksUserCacheKey(created.AssignedTo))
	s.dispatcher.Dispatch(hub.EventCreated, created, created.AssignedTo, nil)
	return created, nil
}

// Update applies a field patch to a task. Admins may change anything,
// including the assignee; the assignee may only toggle completion and
// approval-request flags, and only on their own task.
func (s *Service) Update(ctx context.Context, ident auth.Identity, id int64, fields map[string]any) (Task, error) {
	task, err := s.update(ctx, ident, id, fields)
	s.countMutation("update", err)
	return task, err
}

func (s *Service) update(ctx context.Context, ident auth.Identity, id int64, fields map[string]any) (Task, error) {
	if !ident.Authenticated {
		return Task{}, auth.ErrUnauthorized
	}
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}

	isAdmin := ident.IsAdmin()
	if !isAdmin {
		// Non-admins only ever see their own tasks, so a foreign task is
		// indistinguishable from an absent one.
		if task.AssignedTo != ident.UserID {
			return Task{}, ErrTaskNotFound
		}
		// The gate is on key presence, not effect: an extra field fails
		// even when its value would change nothing.
		for name, value := range fields {
			if _, ok := assigneeFields[name]; !ok {
				return Task{}, fmt.Errorf("%w: only is_completed and is_approval_requested fields are allowed, received %q", auth.ErrForbidden, name)
			}
			if _, ok := value.(bool); !ok {
				return Task{}, fmt.Errorf("%w: %s must be a boolean", auth.ErrForbidden, name)
			}
		}
	}

	previousAssigneeID := task.AssignedTo
	if err := s.applyFields(ctx, &task, fields); err != nil {
		return Task{}, err
	}
	if err := checkApprovalInvariant(task); err != nil {
		return Task{}, err
	}

	var previousAssignee *int64
	if isAdmin && task.AssignedTo != previousAssigneeID {
		previousAssignee = &previousAssigneeID
	}

	task.UpdatedAt = s.now().UTC()
	updated, err := s.store.Update(ctx, task)
	if err != nil {
		return Task{}, err
	}

	keys := []string{
		directory.UserListCacheKey, directory.AdminListCacheKey,
		tasksUserCacheKey(updated.AssignedTo),
	}
	if isAdmin {
		keys = append(keys, TasksAdminCacheKey)
		if previousAssignee != nil {
			keys = append(keys, tasksUserCacheKey(*previousAssignee))
		}
	}
	s.invalidate(ctx, keys...)
	s.dispatcher.Dispatch(hub.EventUpdated, updated, updated.AssignedTo, previousAssignee)
	return updated, nil
}

// Delete removes a task permanently. Deletion is terminal and immediately
// broadcast with an id-only payload.
func (s *Service) Delete(ctx context.Context, ident auth.Identity, id int64) error {
	err := s.delete(ctx, ident, id)
	s.countMutation("delete", err)
	return err
}

func (s *Service) delete(ctx context.Context, ident auth.Identity, id int64) error {
	if !ident.Authenticated {
		return auth.ErrUnauthorized
	}
	if !ident.IsAdmin() {
		return fmt.Errorf("%w: only admin users can delete tasks", auth.ErrForbidden)
	}
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx,
		directory.UserListCacheKey, directory.AdminListCacheKey,
		TasksAdminCacheKey, tasksUserCacheKey(task.AssignedTo))
	s.dispatcher.Dispatch(hub.EventDeleted, DeletedPayload{ID: task.ID}, task.AssignedTo, nil)
	return nil
}

// List returns the viewer's tasks, admins see everything, filtered.
func (s *Service) List(ctx context.Context, ident auth.Identity, filter Filter) ([]Task, error) {
	if !ident.Authenticated {
		return nil, auth.ErrUnauthorized
	}
	scope := Scope{}
	isAdmin := ident.IsAdmin()
	if !isAdmin {
		viewer := ident.UserID
		scope.AssignedTo = &viewer
	}
	all, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	today := DateOf(s.now())
	out := make([]Task, 0, len(all))
	for _, task := range all {
		if filter.Match(task, isAdmin, today) {
			out = append(out, task)
		}
	}
	return out, nil
}

// Get returns one task within the viewer's scope.
func (s *Service) Get(ctx context.Context, ident auth.Identity, id int64) (Task, error) {
	if !ident.Authenticated {
		return Task{}, auth.ErrUnauthorized
	}
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !ident.IsAdmin() && task.AssignedTo != ident.UserID {
		return Task{}, ErrTaskNotFound
	}
	return task, nil
}

func (s *Service) applyFields(ctx context.Context, task *Task, fields map[string]any) error {
	for name, value := range fields {
		switch name {
		case "is_completed":
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%w: is_completed must be a boolean", ErrInvalidInput)
			}
			task.IsCompleted = b
		case "is_approval_requested":
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%w: is_approval_requested must be a boolean", ErrInvalidInput)
			}
			task.IsApprovalRequested = b
		case "title":
			str, ok := value.(string)
			if !ok || str == "" {
				return fmt.Errorf("%w: title must be a non-empty string", ErrInvalidInput)
			}
			task.Title = str
		case "description":
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: description must be a string", ErrInvalidInput)
			}
			task.Description = str
		case "priority":
			str, ok := value.(string)
			if !ok || !Priority(str).Valid() {
				return fmt.Errorf("%w: priority must be low, medium, or high", ErrInvalidInput)
			}
			task.Priority = Priority(str)
		case "due_date":
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: due_date must be a YYYY-MM-DD string", ErrInvalidInput)
			}
			d, err := ParseDate(str)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			task.DueDate = d
		case "assigned_to":
			userID, ok := asInt64(value)
			if !ok {
				return fmt.Errorf("%w: assigned_to must be a user id", ErrInvalidInput)
			}
			if userID != task.AssignedTo {
				exists, err := s.idstore.UserExists(ctx, userID)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("%w: assigned user does not exist", ErrInvalidInput)
				}
				task.AssignedTo = userID
				task.AssignedAt = s.now().UTC()
			}
		case "approved_by":
			if value == nil {
				task.ApprovedBy = nil
				task.ApprovedAt = nil
				continue
			}
			userID, ok := asInt64(value)
			if !ok {
				return fmt.Errorf("%w: approved_by must be a user id or null", ErrInvalidInput)
			}
			exists, err := s.idstore.UserExists(ctx, userID)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: approving user does not exist", ErrInvalidInput)
			}
			task.ApprovedBy = &userID
			if task.ApprovedAt == nil {
				at := s.now().UTC()
				task.ApprovedAt = &at
			}
		default:
			// Unknown fields are ignored; the non-admin subset gate has
			// already rejected anything outside its allowed pair.
		}
	}
	return nil
}

func checkApprovalInvariant(task Task) error {
	if task.ApprovedBy != nil && !(task.IsCompleted && task.IsApprovalRequested) {
		return fmt.Errorf("%w: approval requires a completed task with approval requested", ErrInvalidInput)
	}
	return nil
}

// invalidate drops cache keys before any broadcast for the same mutation, so
// a client reacting to the event never re-reads stale data from this
// mutation. Cache failures are logged, never surfaced to the caller.
func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("cache invalidation failed for %v: %v", keys, err)
		return
	}
	if s.metrics != nil {
		s.metrics.CacheOps.WithLabelValues("delete", "ok").Inc()
	}
}

func (s *Service) countMutation(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUnauthorized):
		outcome = "unauthorized"
	case errors.Is(err, auth.ErrForbidden):
		outcome = "forbidden"
	case errors.Is(err, ErrInvalidInput):
		outcome = "invalid"
	case errors.Is(err, ErrTaskNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	s.metrics.TaskMutations.WithLabelValues(op, outcome).Inc()
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
