package middleware

import (
	"net/http"

	"github.com/hitoshi/sharediary/internal/cookies"
)

// hstsMaxAge は180日。
const hstsMaxAge = "max-age=15552000; includeSubDomains"

// NewSecurityHeadersMiddleware はセキュリティ関連のレスポンスヘッダーを付与する。
// HTMLはブリッジページのみでインラインスタイルしか使わない。
// 応答本文にトークンを含むため、キャッシュは既定で禁止する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'; form-action 'none'")
			h.Set("Cache-Control", "no-store")
			if cookies.IsSecure(r) {
				h.Set("Strict-Transport-Security", hstsMaxAge)
			}
			next.ServeHTTP(w, r)
		})
	}
}
