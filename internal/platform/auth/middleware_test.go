package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubVerifier struct {
	token *firebaseauth.Token
	err   error
	calls int
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*firebaseauth.Token, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func adminToken() *firebaseauth.Token {
	return &firebaseauth.Token{
		UID: "uid-1",
		Claims: map[string]interface{}{
			"email": "barista@example.com",
			"name":  "Barista One",
			"role":  "admin",
		},
	}
}

func TestRequireFirebaseAuthMissingHeader(t *testing.T) {
	verifier := &stubVerifier{token: adminToken()}
	authn := NewAuthenticator(verifier)

	handler := authn.RequireFirebaseAuth(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/products", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if verifier.calls != 0 {
		t.Fatalf("verifier should not be called without a bearer token")
	}
}

func TestRequireFirebaseAuthAdmitsAdmin(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{token: adminToken()})

	var identity *Identity
	handler := authn.RequireFirebaseAuth(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/products", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if identity == nil {
		t.Fatalf("expected identity in request context")
	}
	if identity.UID != "uid-1" {
		t.Fatalf("unexpected uid %q", identity.UID)
	}
	if identity.Byline() != "Barista One" {
		t.Fatalf("unexpected byline %q", identity.Byline())
	}
	if !identity.HasRole(RoleAdmin) {
		t.Fatalf("expected identity to carry admin role")
	}
}

func TestRequireFirebaseAuthRejectsInsufficientRole(t *testing.T) {
	token := adminToken()
	token.Claims["role"] = "customer"
	authn := NewAuthenticator(&stubVerifier{token: token})

	handler := authn.RequireFirebaseAuth(RoleAdmin, RoleEditor)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler should not run for insufficient role")
	}))

	req := httptest.NewRequest(http.MethodDelete, "/admin/products/p1", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRolesFromClaimsShapes(t *testing.T) {
	if got := rolesFromClaims(map[string]interface{}{"role": "Admin"}, "role"); len(got) != 1 || got[0] != "admin" {
		t.Fatalf("string claim: got %v", got)
	}
	if got := rolesFromClaims(map[string]interface{}{"role": []interface{}{"admin", "editor", "admin"}}, "role"); len(got) != 2 {
		t.Fatalf("slice claim should deduplicate, got %v", got)
	}
	if got := rolesFromClaims(map[string]interface{}{"role": map[string]interface{}{"admin": true, "editor": false}}, "role"); len(got) != 1 || got[0] != "admin" {
		t.Fatalf("map claim should keep only true entries, got %v", got)
	}
	if got := rolesFromClaims(map[string]interface{}{}, "role"); got != nil {
		t.Fatalf("missing claim should yield nil, got %v", got)
	}
}
