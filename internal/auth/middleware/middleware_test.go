package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJWTRoundtrip(t *testing.T) {
	svc := NewAuthService("test-secret", nil, "", "")

	tok, err := svc.IssueJWT("u1", "learner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Parse(tok)
	if err != nil || claims == nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Sub != "u1" || claims.Role != "learner" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestParse_WrongSecret(t *testing.T) {
	tok, err := NewAuthService("secret-a", nil, "", "").IssueJWT("u1", "learner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewAuthService("secret-b", nil, "", "").Parse(tok); err == nil {
		t.Fatal("expected verification failure under a different secret")
	}
}

func TestJWTMiddleware(t *testing.T) {
	svc := NewAuthService("test-secret", nil, "", "")
	var gotSub, gotRole string
	h := JWTMiddleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	}))

	// No token.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/attempts", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// Valid token puts subject and role in context.
	tok, err := svc.IssueJWT("u1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest("GET", "/attempts", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	if gotSub != "u1" || gotRole != "admin" {
		t.Fatalf("context not populated: sub=%q role=%q", gotSub, gotRole)
	}
}
