package auth

import (
	"context"
	"log"
	"strings"
)

// CredentialStore looks up the user bound to an opaque bearer token.
// The found flag is false for unknown tokens; errors are reserved for
// store-level failures.
type CredentialStore interface {
	UserByToken(ctx context.Context, token string) (User, bool, error)
}

// Resolver turns bearer tokens into identities. Absent, unknown, and
// malformed tokens all degrade to the anonymous identity so callers share a
// single contract regardless of what the client sent.
type Resolver struct {
	store CredentialStore
}

func NewResolver(store CredentialStore) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context, token string) Identity {
	token = strings.TrimSpace(token)
	if token == "" {
		return Anonymous()
	}
	user, ok, err := r.store.UserByToken(ctx, token)
	if err != nil {
		log.Printf("credential lookup failed: %v", err)
		return Anonymous()
	}
	if !ok {
		return Anonymous()
	}
	return identityOf(user)
}
