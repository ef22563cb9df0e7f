package middleware

import (
	"log/slog"
	"net/http"
)

// NewOriginGuardMiddleware はCookie認証による状態変更リクエストのOriginを検証するミドルウェアを返す。
// SameSite=NoneのセッションCookieは他サイトからも送信されるため、
// 同一ホストか許可リストにあるOrigin以外からの書き込みを403で拒否する。
// セッションCookieを持たないリクエストとOriginヘッダーのないリクエスト（ネイティブアプリ）は検証しない。
func NewOriginGuardMiddleware(cookieName string, allowedOrigins []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || !usesSessionCookie(r, cookieName) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" || sameHost(origin, r) || originAllowed(allowedOrigins, origin) {
				next.ServeHTTP(w, r)
				return
			}

			slog.Warn("cross-site request rejected",
				slog.String("origin", origin),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			http.Error(w, "cross-site request rejected", http.StatusForbidden)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// usesSessionCookie はリクエストがセッションCookieで認証されるかを返す。Cookieが優先される。
func usesSessionCookie(r *http.Request, cookieName string) bool {
	c, err := r.Cookie(cookieName)
	return err == nil && c.Value != ""
}
