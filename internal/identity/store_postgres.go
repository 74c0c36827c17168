package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mircoferri/taskhub/internal/auth"
)

// PostgresStore reads users, groups, and tokens from the shared relational
// store. Schema init is idempotent so a fresh database works out of the box;
// row contents are owned by whatever provisions accounts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initIdentitySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initIdentitySchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			is_staff BOOLEAN NOT NULL DEFAULT FALSE,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE TABLE IF NOT EXISTS groups (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);`,
		`CREATE TABLE IF NOT EXISTS user_groups (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, group_id)
		);`,
		`CREATE TABLE IF NOT EXISTS auth_tokens (
			key TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init identity schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) UserByToken(ctx context.Context, token string) (auth.User, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT u.id, u.username, u.is_staff, u.is_superuser
		   FROM auth_tokens t
		   JOIN users u ON u.id = t.user_id
		  WHERE t.key = $1`,
		token,
	)
	var u auth.User
	if err := row.Scan(&u.ID, &u.Username, &u.IsStaff, &u.IsSuperuser); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, false, nil
		}
		return auth.User{}, false, fmt.Errorf("lookup token: %w", err)
	}
	groups, err := s.groupsOf(ctx, u.ID)
	if err != nil {
		return auth.User{}, false, err
	}
	u.Groups = groups
	return u, true, nil
}

func (s *PostgresStore) groupsOf(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT g.name
		   FROM groups g
		   JOIN user_groups ug ON ug.group_id = g.id
		  WHERE ug.user_id = $1
		  ORDER BY g.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan group name: %w", err)
		}
		groups = append(groups, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}
	return groups, nil
}

func (s *PostgresStore) UsersInRole(ctx context.Context, role string, excludeStaff bool) ([]Member, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM groups WHERE name = $1)`, role,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check role group: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, role)
	}

	q := `SELECT u.id, u.username
	        FROM users u
	        JOIN user_groups ug ON ug.user_id = u.id
	        JOIN groups g ON g.id = ug.group_id
	       WHERE g.name = $1`
	if excludeStaff {
		q += ` AND u.is_staff = FALSE AND u.is_superuser = FALSE`
	}
	q += ` ORDER BY u.id`

	rows, err := s.pool.Query(ctx, q, role)
	if err != nil {
		return nil, fmt.Errorf("list role members: %w", err)
	}
	defer rows.Close()

	members := make([]Member, 0, 8)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Username); err != nil {
			return nil, fmt.Errorf("scan role member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role member rows: %w", err)
	}
	return members, nil
}

func (s *PostgresStore) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) UserInRole(ctx context.Context, id int64, role string) (bool, error) {
	var in bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1
			  FROM user_groups ug
			  JOIN groups g ON g.id = ug.group_id
			 WHERE ug.user_id = $1 AND g.name = $2
		)`, id, role,
	).Scan(&in); err != nil {
		return false, fmt.Errorf("check user role: %w", err)
	}
	return in, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
