package cookies

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"localhost", ""},
		{"localhost:3000", ""},
		{"app.localhost", ""},
		{"127.0.0.1:3000", ""},
		{"[::1]:3000", ""},
		{"192.168.1.10", ""},
		{"intranet", ""},
		{"example.com", "example.com"},
		{"api.example.com", "example.com"},
		{"API.Example.COM:443", "example.com"},
		{"diary.example.co.uk", "example.co.uk"},
		{"co.uk", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := Domain(tt.host); got != tt.want {
				t.Errorf("Domain(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestIsSecure(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
	if IsSecure(plain) {
		t.Error("plain http request should not be secure")
	}

	withTLS := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	withTLS.TLS = &tls.ConnectionState{}
	if !IsSecure(withTLS) {
		t.Error("TLS request should be secure")
	}

	forwarded := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	forwarded.Header.Set("X-Forwarded-Proto", "HTTPS, http")
	if !IsSecure(forwarded) {
		t.Error("X-Forwarded-Proto https should be secure")
	}
}

func TestSession_Attributes(t *testing.T) {
	t.Run("local http", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "http://localhost:3000/api/auth/login", nil)
		c := Session(r, "authToken", "tok", 7*24*time.Hour)

		if !c.HttpOnly {
			t.Error("cookie must be HttpOnly")
		}
		if c.Secure {
			t.Error("cookie must not be Secure over plain http")
		}
		if c.SameSite != http.SameSiteLaxMode {
			t.Errorf("SameSite = %v, want Lax", c.SameSite)
		}
		if c.Domain != "" {
			t.Errorf("Domain = %q, want empty", c.Domain)
		}
		if c.MaxAge != 7*24*60*60 {
			t.Errorf("MaxAge = %d", c.MaxAge)
		}
		if c.Path != "/" {
			t.Errorf("Path = %q", c.Path)
		}
	})

	t.Run("proxied https", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "http://api.example.com/api/auth/login", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		c := Session(r, "authToken", "tok", time.Hour)

		if !c.Secure {
			t.Error("cookie must be Secure behind https proxy")
		}
		if c.SameSite != http.SameSiteNoneMode {
			t.Errorf("SameSite = %v, want None", c.SameSite)
		}
		if c.Domain != "example.com" {
			t.Errorf("Domain = %q, want example.com", c.Domain)
		}
	})
}

func TestClear_Expires(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://localhost/api/auth/logout", nil)
	c := Clear(r, "authToken")

	if c.MaxAge != -1 {
		t.Errorf("MaxAge = %d, want -1", c.MaxAge)
	}
	if c.Value != "" {
		t.Errorf("Value = %q, want empty", c.Value)
	}
	if c.Name != "authToken" {
		t.Errorf("Name = %q", c.Name)
	}
}
