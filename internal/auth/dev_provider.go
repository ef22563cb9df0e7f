package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DevCodePrefix は開発用プロバイダーが発行する認可コードの接頭辞。
const DevCodePrefix = "dev_"

const devCodeTTL = 5 * time.Minute

// DevOAuthProvider は外部プロバイダーを使わずにOAuthフローを通すための開発用プロバイダー。
// 発行した認可コードは一度だけ交換でき、常に同じ開発ユーザーに解決される。
type DevOAuthProvider struct {
	baseURL string
	now     func() time.Time

	mu    sync.Mutex
	codes map[string]time.Time
}

// NewDevOAuthProvider はDevOAuthProviderを生成する。
// baseURLはコールバック先のサーバーURL。
func NewDevOAuthProvider(baseURL string) *DevOAuthProvider {
	return &DevOAuthProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		codes:   make(map[string]time.Time),
	}
}

// IssueCode は新しい開発用認可コードを発行する。
func (p *DevOAuthProvider) IssueCode() string {
	code := DevCodePrefix + uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for c, exp := range p.codes {
		if now.After(exp) {
			delete(p.codes, c)
		}
	}
	p.codes[code] = now.Add(devCodeTTL)
	return code
}

// GetLoginURL は認可コード付きのモバイルコールバックURLを返す。
func (p *DevOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"code":  {p.IssueCode()},
		"state": {state},
	}
	return p.baseURL + "/api/oauth/mobile?" + params.Encode()
}

// ExchangeCode は発行済みのコードを消費して開発ユーザーの情報を返す。
func (p *DevOAuthProvider) ExchangeCode(_ context.Context, code string) (*OAuthUserInfo, error) {
	p.mu.Lock()
	exp, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()

	if !ok || p.now().After(exp) {
		return nil, ErrInvalidOAuthCode
	}
	return &OAuthUserInfo{
		Subject:  "dev-user",
		Email:    "dev@example.com",
		Name:     "Dev User",
		Provider: "dev",
	}, nil
}

var _ OAuthProvider = (*DevOAuthProvider)(nil)
