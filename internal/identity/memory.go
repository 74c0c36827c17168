package identity

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mircoferri/taskhub/internal/auth"
)

// MemoryStore is an in-process identity store for local runs and tests.
// Accounts are added programmatically or seeded from a YAML fixture file.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[int64]auth.User
	tokens map[string]int64
	roles  map[string]struct{}
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int64]auth.User),
		tokens: make(map[string]int64),
		roles:  map[string]struct{}{auth.GroupAdmin: {}, auth.GroupUser: {}},
	}
}

// AddUser registers a user and returns its id. An empty token leaves the
// account without credentials.
func (s *MemoryStore) AddUser(u auth.User, token string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.nextID++
		u.ID = s.nextID
	} else if u.ID > s.nextID {
		s.nextID = u.ID
	}
	s.users[u.ID] = u
	if token != "" {
		s.tokens[token] = u.ID
	}
	for _, g := range u.Groups {
		s.roles[g] = struct{}{}
	}
	return u.ID
}

// DropRole removes a role group entirely, so listings for it report the
// misconfigured-directory condition.
func (s *MemoryStore) DropRole(role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, role)
}

type seedFile struct {
	Users []struct {
		ID          int64    `yaml:"id"`
		Username    string   `yaml:"username"`
		Token       string   `yaml:"token"`
		IsStaff     bool     `yaml:"is_staff"`
		IsSuperuser bool     `yaml:"is_superuser"`
		Groups      []string `yaml:"groups"`
	} `yaml:"users"`
}

// SeedFromFile loads accounts from a YAML fixture, used when running
// without a relational identity store behind the service.
func (s *MemoryStore) SeedFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	for _, u := range sf.Users {
		if u.Username == "" {
			continue
		}
		s.AddUser(auth.User{
			ID:          u.ID,
			Username:    u.Username,
			IsStaff:     u.IsStaff,
			IsSuperuser: u.IsSuperuser,
			Groups:      u.Groups,
		}, u.Token)
	}
	return nil
}

func (s *MemoryStore) UserByToken(_ context.Context, token string) (auth.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return auth.User{}, false, nil
	}
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, false, nil
	}
	return u, true, nil
}

func (s *MemoryStore) UsersInRole(_ context.Context, role string, excludeStaff bool) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.roles[role]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, role)
	}
	members := make([]Member, 0, len(s.users))
	for _, u := range s.users {
		if !inGroups(u.Groups, role) {
			continue
		}
		if excludeStaff && (u.IsStaff || u.IsSuperuser) {
			continue
		}
		members = append(members, Member{ID: u.ID, Username: u.Username})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (s *MemoryStore) UserExists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *MemoryStore) UserInRole(_ context.Context, id int64, role string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	return inGroups(u.Groups, role), nil
}

func (s *MemoryStore) Close() error { return nil }

func inGroups(groups []string, name string) bool {
	for _, g := range groups {
		if g == name {
			return true
		}
	}
	return false
}
