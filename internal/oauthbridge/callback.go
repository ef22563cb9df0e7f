package oauthbridge

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoCode はコールバックURLに認可コードが含まれないことを表す。
var ErrNoCode = errors.New("callback url has no code")

// Callback はディープリンクで受け取った認可コードとstate。
type Callback struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

var (
	codeParam  = regexp.MustCompile(`[?&]code=([^&#]+)`)
	stateParam = regexp.MustCompile(`[?&]state=([^&#]+)`)
)

// ParseCallback はコールバックURLからcodeとstateを取り出す。
// URLとして解析できない入力は正規表現による抽出にフォールバックする。
func ParseCallback(raw string) (Callback, error) {
	cb, err := ParseCallbackURL(raw)
	if err == nil {
		return cb, nil
	}
	return ParseCallbackRegexp(raw)
}

// ParseCallbackURL は標準のURL解析でcodeとstateを取り出す。
// Expoのexp://、exps://はhttp://として解析する。
func ParseCallbackURL(raw string) (Callback, error) {
	u, err := url.Parse(rewriteExpoScheme(strings.TrimSpace(raw)))
	if err != nil {
		return Callback{}, fmt.Errorf("parse callback url: %w", err)
	}
	q := u.Query()
	cb := Callback{Code: q.Get("code"), State: q.Get("state")}
	if cb.Code == "" {
		return Callback{}, ErrNoCode
	}
	return cb, nil
}

// ParseCallbackRegexp は正規表現でcodeとstateを取り出し、パーセントデコードする。
func ParseCallbackRegexp(raw string) (Callback, error) {
	var cb Callback
	m := codeParam.FindStringSubmatch(raw)
	if m == nil {
		return Callback{}, ErrNoCode
	}
	code, err := url.QueryUnescape(m[1])
	if err != nil {
		return Callback{}, fmt.Errorf("decode code: %w", err)
	}
	cb.Code = code

	if m := stateParam.FindStringSubmatch(raw); m != nil {
		state, err := url.QueryUnescape(m[1])
		if err != nil {
			return Callback{}, fmt.Errorf("decode state: %w", err)
		}
		cb.State = state
	}
	return cb, nil
}

func rewriteExpoScheme(raw string) string {
	lower := strings.ToLower(raw)
	for _, prefix := range []string{"exps://", "exp://"} {
		if strings.HasPrefix(lower, prefix) {
			return "http://" + raw[len(prefix):]
		}
	}
	return raw
}
