// Package cookies はリクエストに応じたセッションCookieの属性を決める。
package cookies

import (
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// IsSecure はリクエストがTLS経由か、リバースプロキシがhttpsを示しているかを返す。
func IsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	// 複数プロキシを経由した場合は先頭がクライアント側
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

// Domain はCookieのDomain属性を返す。
// localhost、IPアドレス、単一ラベルのホストでは空文字列（ホスト限定Cookie）を返し、
// それ以外は公開サフィックスリストに基づく登録可能ドメインを返す。
func Domain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]."))
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return ""
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

// Options はリクエストから決まるCookie属性。
type Options struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// OptionsFor はリクエストに応じたCookie属性を返す。
// クロスサイトのアプリから送信させるため、安全な接続ではSameSite=Noneとする。
func OptionsFor(r *http.Request) Options {
	secure := IsSecure(r)
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	return Options{
		Domain:   Domain(r.Host),
		Secure:   secure,
		SameSite: sameSite,
	}
}

// Session はセッショントークンを格納するHttpOnly Cookieを生成する。
func Session(r *http.Request, name, value string, maxAge time.Duration) *http.Cookie {
	opts := OptionsFor(r)
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
}

// Clear はセッションCookieを削除するCookieを生成する。
func Clear(r *http.Request, name string) *http.Cookie {
	c := Session(r, name, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}
