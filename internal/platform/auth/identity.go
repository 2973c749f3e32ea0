package auth

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Roles recognised when gating the admin surface.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// Identity captures the authenticated principal extracted from a Firebase ID token.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	Roles       []string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token associated with this identity.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// HasRole reports whether the identity includes the requested role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity includes any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// Byline returns the name to attribute authored content to, preferring the
// display name over the email address.
func (i *Identity) Byline() string {
	if i == nil {
		return ""
	}
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	return strings.TrimSpace(i.Email)
}

type contextKey string

const identityContextKey contextKey = "github.com/wokecoffee/site/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
