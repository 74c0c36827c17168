package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initTaskSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initTaskSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'medium',
			due_date DATE NOT NULL,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			assigned_to BIGINT NOT NULL,
			assigned_by BIGINT NULL,
			assigned_at TIMESTAMPTZ NOT NULL,
			is_approval_requested BOOLEAN NOT NULL DEFAULT FALSE,
			approved_by BIGINT NULL,
			approved_at TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks (priority);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks (due_date);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_is_completed ON tasks (is_completed);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks (assigned_to);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assigned_by ON tasks (assigned_by);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init task schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const taskColumns = `id, title, description, priority, due_date, is_completed,
	assigned_to, assigned_by, assigned_at, is_approval_requested,
	approved_by, approved_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, task Task) (Task, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (
			title, description, priority, due_date, is_completed,
			assigned_to, assigned_by, assigned_at, is_approval_requested,
			approved_by, approved_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id`,
		task.Title,
		task.Description,
		string(task.Priority),
		task.DueDate.Time,
		task.IsCompleted,
		task.AssignedTo,
		task.AssignedBy,
		task.AssignedAt,
		task.IsApprovalRequested,
		task.ApprovedBy,
		task.ApprovedAt,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err := row.Scan(&task.ID); err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) Update(ctx context.Context, task Task) (Task, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET
			title=$2, description=$3, priority=$4, due_date=$5,
			is_completed=$6, assigned_to=$7, assigned_by=$8, assigned_at=$9,
			is_approval_requested=$10, approved_by=$11, approved_at=$12,
			updated_at=$13
		WHERE id=$1`,
		task.ID,
		task.Title,
		task.Description,
		string(task.Priority),
		task.DueDate.Time,
		task.IsCompleted,
		task.AssignedTo,
		task.AssignedBy,
		task.AssignedAt,
		task.IsApprovalRequested,
		task.ApprovedBy,
		task.ApprovedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Task{}, ErrTaskNotFound
	}
	return task, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, scope Scope) ([]Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}
	if scope.AssignedTo != nil {
		q += ` WHERE assigned_to = $1`
		args = append(args, *scope.AssignedTo)
	}
	q += ` ORDER BY id DESC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]Task, 0, 16)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return out, nil
}

func scanTask(row pgx.Row) (Task, error) {
	var (
		task     Task
		priority string
	)
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&priority,
		&task.DueDate.Time,
		&task.IsCompleted,
		&task.AssignedTo,
		&task.AssignedBy,
		&task.AssignedAt,
		&task.IsApprovalRequested,
		&task.ApprovedBy,
		&task.ApprovedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return Task{}, err
	}
	task.Priority = Priority(priority)
	return task, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
