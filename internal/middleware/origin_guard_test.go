package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginGuardMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		cookie     bool
		bearer     bool
		origin     string
		wantStatus int
	}{
		{"safe method from other site", http.MethodGet, true, false, "https://evil.example.com", http.StatusOK},
		{"cookie write from other site", http.MethodPost, true, false, "https://evil.example.com", http.StatusForbidden},
		{"cookie write from same host", http.MethodPost, true, false, "http://api.example.com", http.StatusOK},
		{"cookie write from allowed origin", http.MethodDelete, true, false, "http://localhost:8081", http.StatusOK},
		{"cookie write without origin", http.MethodPatch, true, false, "", http.StatusOK},
		{"bearer write from other site", http.MethodPost, false, true, "https://evil.example.com", http.StatusOK},
		{"cookie and bearer write from other site", http.MethodPost, true, true, "https://evil.example.com", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewOriginGuardMiddleware("authToken", []string{"http://localhost:8081"})
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "http://api.example.com/api/groups", nil)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: "authToken", Value: "tok"})
			}
			if tt.bearer {
				req.Header.Set("Authorization", "Bearer tok")
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
