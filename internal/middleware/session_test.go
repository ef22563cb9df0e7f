package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/sharediary/internal/auth"
	"github.com/hitoshi/sharediary/internal/model"
)

// --- モック定義 ---

type mockUserFinder struct {
	findByIDFn func(ctx context.Context, id int64) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

const testSecret = "middleware-test-secret"

// existingUser はID 1のユーザーだけを返すUserFinder。
func existingUser() *mockUserFinder {
	return &mockUserFinder{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			if id == 1 {
				return &model.User{ID: 1, Email: model.StringPtr("one@example.com")}, nil
			}
			return nil, nil
		},
	}
}

func issueToken(t *testing.T, userID int64) string {
	t.Helper()
	token, err := auth.NewTokenIssuer(testSecret).Issue(userID, "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

// --- テスト ---

func TestSessionMiddleware_ValidCookie_InjectsUser(t *testing.T) {
	mw := NewSessionMiddleware("authToken", auth.NewTokenIssuer(testSecret), existingUser())

	var captured *model.User
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			t.Error("expected user in context")
		}
		captured = u
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: issueToken(t, 1)})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured == nil || captured.ID != 1 {
		t.Errorf("user = %+v, want ID 1", captured)
	}
}

func TestSessionMiddleware_ValidBearer_InjectsUser(t *testing.T) {
	mw := NewSessionMiddleware("authToken", auth.NewTokenIssuer(testSecret), existingUser())

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "bearer "+issueToken(t, 1))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Errorf("handler not called, status = %d", w.Code)
	}
}

func TestSessionMiddleware_Rejects_WithGenericBody(t *testing.T) {
	expired, err := auth.NewTokenIssuer(testSecret).WithClock(func() time.Time {
		return time.Now().Add(-auth.TokenTTL - time.Hour)
	}).Issue(1, "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	otherSecret, _ := auth.NewTokenIssuer("other-secret").Issue(1, "")

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		users   *mockUserFinder
	}{
		{"no token", func(r *http.Request) {}, existingUser()},
		{"garbage cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "authToken", Value: "garbage"})
		}, existingUser()},
		{"basic auth", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		}, existingUser()},
		{"expired", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+expired)
		}, existingUser()},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+otherSecret)
		}, existingUser()},
		{"user deleted", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+issueToken(t, 99))
		}, existingUser()},
		{"repository error", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+issueToken(t, 1))
		}, &mockUserFinder{findByIDFn: func(context.Context, int64) (*model.User, error) {
			return nil, errors.New("db down")
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewSessionMiddleware("authToken", auth.NewTokenIssuer(testSecret), tt.users)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if got := w.Body.String(); got != "{\"error\":\"unauthorized\"}\n" {
				t.Errorf("body = %q", got)
			}
		})
	}
}

func TestTokenFromRequest_CookieTakesPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")

	if got := TokenFromRequest(req, "authToken"); got != "from-cookie" {
		t.Errorf("TokenFromRequest() = %q, want from-cookie", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer  from-header ")
	if got := TokenFromRequest(req, "authToken"); got != "from-header" {
		t.Errorf("TokenFromRequest() = %q, want from-header", got)
	}
}

func TestUserFromContext_Missing(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Error("expected no user in empty context")
	}
	if _, ok := UserFromContext(ContextWithUser(context.Background(), nil)); ok {
		t.Error("nil user should not be reported as present")
	}
}
