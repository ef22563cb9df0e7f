package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// AnyOrigin はCORS許可リストで任意のオリジンを許可する指定。
const AnyOrigin = "*"

// NewCORSMiddleware は許可されたオリジンをそのまま返すCORSミドルウェアを返す。
// credentials送信と共存するため、ワイルドカード(*)そのものは返さない。
// 許可リストにAnyOriginを含む場合はすべてのオリジンを返す。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(allowedOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == AnyOrigin || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// sameHost はOriginヘッダーのホストがリクエスト先と同じかを返す。
func sameHost(origin string, r *http.Request) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
