// Package directory serves the role-membership listings ("who holds the
// user role", "who holds the admin role") behind a short-TTL cache.
package directory

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/mircoferri/taskhub/internal/auth"
	"github.com/mircoferri/taskhub/internal/cache"
	"github.com/mircoferri/taskhub/internal/identity"
	"github.com/mircoferri/taskhub/internal/observability"
)

const (
	UserListCacheKey  = "user_list_cache"
	AdminListCacheKey = "admin_list_cache"
)

type Service struct {
	store   identity.Store
	cache   cache.Cache
	ttl     time.Duration
	metrics *observability.Metrics
}

func New(store identity.Store, c cache.Cache, ttl time.Duration, metrics *observability.Metrics) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{store: store, cache: c, ttl: ttl, metrics: metrics}
}

// UserList returns members of the "user" role, excluding staff and
// superuser accounts. Admin-only.
func (s *Service) UserList(ctx context.Context, ident auth.Identity) ([]identity.Member, error) {
	if !ident.Authenticated {
		return nil, auth.ErrUnauthorized
	}
	if !ident.IsAdmin() {
		return nil, auth.ErrForbidden
	}
	return s.listing(ctx, UserListCacheKey, func() ([]identity.Member, error) {
		return s.store.UsersInRole(ctx, auth.GroupUser, true)
	})
}

// AdminList returns members of the "admin" role. Open to any authenticated
// principal.
func (s *Service) AdminList(ctx context.Context, ident auth.Identity) ([]identity.Member, error) {
	if !ident.Authenticated {
		return nil, auth.ErrUnauthorized
	}
	return s.listing(ctx, AdminListCacheKey, func() ([]identity.Member, error) {
		return s.store.UsersInRole(ctx, auth.GroupAdmin, false)
	})
}

func (s *Service) listing(ctx context.Context, key string, fetch func() ([]identity.Member, error)) ([]identity.Member, error) {
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var members []identity.Member
		if err := json.Unmarshal(raw, &members); err == nil {
			s.countCacheOp("get", "hit")
			return members, nil
		}
		// Undecodable entry: fall through and repopulate.
		_ = s.cache.Delete(ctx, key)
	} else if err != nil {
		log.Printf("directory cache read %s failed: %v", key, err)
	}
	s.countCacheOp("get", "miss")

	members, err := fetch()
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(members); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			log.Printf("directory cache write %s failed: %v", key, err)
		} else {
			s.countCacheOp("set", "ok")
		}
	}
	return members, nil
}

// Invalidate drops both directory listings. Called after every task
// mutation and expected from whatever mutates role membership server-side.
func (s *Service) Invalidate(ctx context.Context) error {
	s.countCacheOp("delete", "ok")
	return s.cache.Delete(ctx, UserListCacheKey, AdminListCacheKey)
}

func (s *Service) countCacheOp(op, result string) {
	if s.metrics != nil {
		s.metrics.CacheOps.WithLabelValues(op, result).Inc()
	}
}
