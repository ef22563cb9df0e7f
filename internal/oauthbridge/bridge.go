// Package oauthbridge はモバイルアプリとOAuthプロバイダーの間のリダイレクトを仲介する。
// stateはアプリのredirectUriをbase64urlで符号化したもので、サーバーはそれを
// 復号してディープリンクへ認可コードを引き渡す。
package oauthbridge

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/hitoshi/sharediary/internal/model"
)

var (
	// ErrInvalidState はstateがbase64として復号できないことを表す。
	ErrInvalidState = fmt.Errorf("invalid state: %w", model.ErrValidation)

	// ErrSchemeNotAllowed はredirectUriのスキームが許可リストにないことを表す。
	ErrSchemeNotAllowed = fmt.Errorf("redirect scheme not allowed: %w", model.ErrValidation)
)

// EncodeState はredirectUriをstateに符号化する。
func EncodeState(redirectURI string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(redirectURI))
}

// DecodeState はstateからredirectUriを復号する。
// アプリ側の実装差を吸収するため、パディングの有無と標準・URL安全の両アルファベットを受け付ける。
func DecodeState(state string) (string, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return "", ErrInvalidState
	}
	trimmed := strings.TrimRight(state, "=")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.RawStdEncoding} {
		if b, err := enc.DecodeString(trimmed); err == nil && len(b) > 0 {
			return string(b), nil
		}
	}
	return "", ErrInvalidState
}

// RedirectValidator はディープリンク先のスキームを許可リストで検証する。
type RedirectValidator struct {
	schemes map[string]struct{}
}

// NewRedirectValidator はRedirectValidatorを生成する。スキームは大文字小文字を区別しない。
func NewRedirectValidator(schemes []string) *RedirectValidator {
	m := make(map[string]struct{}, len(schemes))
	for _, s := range schemes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			m[s] = struct{}{}
		}
	}
	return &RedirectValidator{schemes: m}
}

// Validate はredirectUriを解析し、スキームが許可されていれば返す。
func (v *RedirectValidator) Validate(redirectURI string) (*url.URL, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", ErrSchemeNotAllowed)
	}
	if _, ok := v.schemes[strings.ToLower(u.Scheme)]; !ok {
		return nil, fmt.Errorf("scheme %q: %w", u.Scheme, ErrSchemeNotAllowed)
	}
	return u, nil
}

// ResolveState はstateを復号し、許可されたredirectUriであることを確認する。
func (v *RedirectValidator) ResolveState(state string) (*url.URL, error) {
	redirectURI, err := DecodeState(state)
	if err != nil {
		return nil, err
	}
	return v.Validate(redirectURI)
}

// BuildDeepLink はredirectUriに認可コードとstateを付けたディープリンクを返す。
// redirectUriの既存のクエリは保持する。
func BuildDeepLink(redirect *url.URL, code, state string) string {
	u := *redirect
	q := u.Query()
	q.Set("code", code)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String()
}
