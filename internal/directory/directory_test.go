package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mircoferri/taskhub/internal/auth"
	"github.com/mircoferri/taskhub/internal/cache"
	"github.com/mircoferri/taskhub/internal/identity"
)

type countingStore struct {
	*identity.MemoryStore
	mu    sync.Mutex
	calls int
}

func (s *countingStore) UsersInRole(ctx context.Context, role string, excludeStaff bool) ([]identity.Member, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.MemoryStore.UsersInRole(ctx, role, excludeStaff)
}

func newFixture() (*countingStore, *Service) {
	store := &countingStore{MemoryStore: identity.NewMemoryStore()}
	store.AddUser(auth.User{ID: 1, Username: "boss", IsStaff: true, Groups: []string{auth.GroupAdmin}}, "admintok")
	store.AddUser(auth.User{ID: 42, Username: "worker", Groups: []string{auth.GroupUser}}, "usertok")
	store.AddUser(auth.User{ID: 43, Username: "staffer", IsStaff: true, Groups: []string{auth.GroupUser}}, "")
	svc := New(store, cache.NewMemory(), 30*time.Second, nil)
	return store, svc
}

func adminIdentity() auth.Identity {
	return auth.Identity{UserID: 1, Username: "boss", IsStaff: true, Authenticated: true}
}

func userIdentity() auth.Identity {
	return auth.Identity{UserID: 42, Username: "worker", Groups: []string{auth.GroupUser}, Authenticated: true}
}

func TestUserListRequiresAdmin(t *testing.T) {
	_, svc := newFixture()
	ctx := context.Background()

	if _, err := svc.UserList(ctx, auth.Anonymous()); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("anonymous UserList error = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.UserList(ctx, userIdentity()); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("non-admin UserList error = %v, want ErrForbidden", err)
	}
}

func TestUserListExcludesStaffMembers(t *testing.T) {
	_, svc := newFixture()
	members, err := svc.UserList(context.Background(), adminIdentity())
	if err != nil {
		t.Fatalf("UserList() error = %v", err)
	}
	if len(members) != 1 || members[0].ID != 42 {
		t.Fatalf("UserList() = %+v, want only user 42", members)
	}
}

func TestAdminListOpenToAuthenticated(t *testing.T) {
	_, svc := newFixture()
	members, err := svc.AdminList(context.Background(), userIdentity())
	if err != nil {
		t.Fatalf("AdminList() error = %v", err)
	}
	if len(members) != 1 || members[0].Username != "boss" {
		t.Fatalf("AdminList() = %+v, want boss", members)
	}
}

func TestSecondCallWithinTTLServedFromCache(t *testing.T) {
	store, svc := newFixture()
	ctx := context.Background()

	if _, err := svc.UserList(ctx, adminIdentity()); err != nil {
		t.Fatalf("first UserList() error = %v", err)
	}
	if _, err := svc.UserList(ctx, adminIdentity()); err != nil {
		t.Fatalf("second UserList() error = %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("store queried %d times, want 1 (second call cached)", store.calls)
	}
}

func TestInvalidateForcesRequery(t *testing.T) {
	store, svc := newFixture()
	ctx := context.Background()

	if _, err := svc.UserList(ctx, adminIdentity()); err != nil {
		t.Fatalf("UserList() error = %v", err)
	}
	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := svc.UserList(ctx, adminIdentity()); err != nil {
		t.Fatalf("UserList() after invalidate error = %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("store queried %d times, want 2 after invalidation", store.calls)
	}
}

func TestMissingRoleGroupIsDistinctError(t *testing.T) {
	store, svc := newFixture()
	store.DropRole(auth.GroupUser)

	if _, err := svc.UserList(context.Background(), adminIdentity()); !errors.Is(err, identity.ErrRoleNotFound) {
		t.Fatalf("UserList() error = %v, want ErrRoleNotFound", err)
	}
}
