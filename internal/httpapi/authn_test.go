package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"datareg.org/internal/auth"
	"datareg.org/internal/blob"
	"datareg.org/internal/registry"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer   abc  ", want: "abc"},
		{header: "", wantErr: true},
		{header: "Basic dXNlcjpwdw==", wantErr: true},
		{header: "Bearer ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.header)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %q, %v", tc.header, got, err)
		}
	}
}

func TestAuthenticateResolvesCurrentUser(t *testing.T) {
	svc, err := registry.NewService(registry.NewMemory(), blob.NewMemory())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	api, err := New(svc, tokens)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	u, err := svc.ProvisionUser(context.Background(), registry.NewUser{
		Username: "reviewer", Password: "pw", Role: auth.RoleRegistryCenter,
	})
	if err != nil {
		t.Fatalf("ProvisionUser: %v", err)
	}

	var seen auth.Actor
	handler := RequestID(api.authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = actorFrom(r)
		if tok, ok := auth.TokenFromContext(r.Context()); !ok || tok == "" {
			t.Errorf("token missing from context")
		}
		w.WriteHeader(http.StatusNoContent)
	})))

	// the role in the token is stale; the stored user wins
	token, _, err := tokens.Issue(auth.Actor{ID: u.ID, Username: "reviewer", Role: auth.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set(authHeader, "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if seen.ID != u.ID || seen.Role != auth.RoleRegistryCenter {
		t.Fatalf("unexpected actor %+v", seen)
	}

	ghost, _, err := tokens.Issue(auth.Actor{ID: 999, Username: "ghost", Role: auth.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set(authHeader, "Bearer "+ghost)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}
