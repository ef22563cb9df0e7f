// Package auth はパスワード・プロバイダー・OAuthによるログインとセッショントークンの発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sharediary/internal/identity"
	"github.com/hitoshi/sharediary/internal/metrics"
	"github.com/hitoshi/sharediary/internal/model"
	"github.com/hitoshi/sharediary/internal/repository"
)

// bcryptは72バイトを超える入力を扱えない
const maxPasswordBytes = 72

// ErrInvalidOAuthCode は認可コードが無効・期限切れ・使用済みであることを表す。
var ErrInvalidOAuthCode = fmt.Errorf("invalid oauth code: %w", model.ErrAuthentication)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	Subject  string // プロバイダー内で一意なユーザーID
	Email    string // 検証済みの場合のみ設定される
	Name     string
	Provider string // "google", "dev"
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// Hasher はパスワードのハッシュ化と照合のインターフェース。
type Hasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) bool
}

// IdentityResolver は本人情報からユーザー行を解決するインターフェース。
type IdentityResolver interface {
	Resolve(ctx context.Context, a identity.Assertion) (*model.User, error)
}

// AuthResult はログイン成功時の応答。
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	resolver IdentityResolver
	hasher   Hasher
	tokens   *TokenIssuer
	oauth    OAuthProvider
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewService はServiceを生成する。oauthがnilの場合、OAuthコード交換は利用できない。
func NewService(
	users repository.UserRepository,
	resolver IdentityResolver,
	hasher Hasher,
	tokens *TokenIssuer,
	oauth OAuthProvider,
	m metrics.MetricsCollector,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		users:    users,
		resolver: resolver,
		hasher:   hasher,
		tokens:   tokens,
		oauth:    oauth,
		metrics:  m,
		now:      time.Now,
	}
}

// OAuthProvider は設定されているOAuthプロバイダーを返す。未設定の場合はnil。
func (s *Service) OAuthProvider() OAuthProvider {
	return s.oauth
}

// Register はメールアドレスとパスワードでアカウントを作成し、トークンを発行する。
// 既にアカウントがあるメールアドレスではmodel.ErrConflictを返し、既存のハッシュは変更しない。
func (s *Service) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required: %w", model.ErrValidation)
	}
	if len(password) > maxPasswordBytes {
		return nil, fmt.Errorf("password must be at most %d bytes: %w", maxPasswordBytes, model.ErrValidation)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("email %s: %w", email, model.ErrConflict)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	user, err := s.resolver.Resolve(ctx, identity.Assertion{
		Email:        email,
		Name:         strings.TrimSpace(name),
		LoginMethod:  model.LoginMethodEmail,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	// 同時登録で先に作られた行に解決された場合、その行のハッシュは自分のものではない
	if model.Deref(user.PasswordHash) != hash {
		return nil, fmt.Errorf("email %s: %w", email, model.ErrConflict)
	}

	s.metrics.RecordRegistration()
	slog.Info("user registered", slog.Int64("user_id", user.ID))
	return s.issue(user)
}

// LoginWithPassword はメールアドレスとパスワードで認証する。
// 未登録はmodel.ErrNotFound、パスワード未設定・不一致はmodel.ErrInvalidCredentialを返す。
func (s *Service) LoginWithPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required: %w", model.ErrValidation)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordLogin(model.LoginMethodEmail, metrics.ResultFailure)
		return nil, fmt.Errorf("user not found: %w", model.ErrNotFound)
	}
	if !user.HasPassword() {
		s.metrics.RecordLogin(model.LoginMethodEmail, metrics.ResultFailure)
		return nil, fmt.Errorf("account has no password: %w", model.ErrInvalidCredential)
	}
	if !s.hasher.Verify(ctx, password, *user.PasswordHash) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.metrics.RecordLogin(model.LoginMethodEmail, metrics.ResultFailure)
		return nil, fmt.Errorf("password mismatch: %w", model.ErrInvalidCredential)
	}

	now := s.now()
	if err := s.users.UpdateLinkage(ctx, user.ID, repository.UserPatch{SignedInAt: now}); err != nil {
		return nil, fmt.Errorf("failed to update last signed in: %w", err)
	}
	user.LastSignedIn = now

	s.metrics.RecordLogin(model.LoginMethodEmail, metrics.ResultSuccess)
	return s.issue(user)
}

// LoginWithProvider はGoogle・AppleのIDでログインする。
// 同じメールアドレスのユーザーがいれば紐付け、いなければ作成する。
func (s *Service) LoginWithProvider(ctx context.Context, provider, providerID, email, name string) (*AuthResult, error) {
	email = normalizeEmail(email)
	providerID = strings.TrimSpace(providerID)
	if providerID == "" || email == "" {
		return nil, fmt.Errorf("%s id and email are required: %w", provider, model.ErrValidation)
	}

	a := identity.Assertion{
		Email:       email,
		Name:        strings.TrimSpace(name),
		LoginMethod: provider,
	}
	switch provider {
	case model.LoginMethodGoogle:
		a.GoogleID = providerID
	case model.LoginMethodApple:
		a.AppleID = providerID
	default:
		return nil, fmt.Errorf("unsupported provider %q: %w", provider, model.ErrValidation)
	}

	user, err := s.resolver.Resolve(ctx, a)
	if err != nil {
		s.metrics.RecordLogin(provider, metrics.ResultFailure)
		return nil, fmt.Errorf("failed to resolve %s user: %w", provider, err)
	}

	s.metrics.RecordLogin(provider, metrics.ResultSuccess)
	return s.issue(user)
}

// ExchangeOAuthCode はOAuthの認可コードを交換し、openIdでユーザーを解決してトークンを発行する。
func (s *Service) ExchangeOAuthCode(ctx context.Context, code, state string) (*AuthResult, error) {
	if code == "" || state == "" {
		return nil, fmt.Errorf("code and state are required: %w", model.ErrValidation)
	}
	if s.oauth == nil {
		return nil, fmt.Errorf("oauth provider is not configured: %w", model.ErrNotAvailable)
	}

	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.RecordLogin(model.LoginMethodOAuth, metrics.ResultFailure)
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	a := identity.Assertion{
		OpenID:      info.Subject,
		Email:       normalizeEmail(info.Email),
		Name:        info.Name,
		LoginMethod: model.LoginMethodOAuth,
	}
	if info.Provider == model.LoginMethodGoogle {
		a.GoogleID = info.Subject
	}

	user, err := s.resolver.Resolve(ctx, a)
	if err != nil {
		s.metrics.RecordLogin(model.LoginMethodOAuth, metrics.ResultFailure)
		return nil, fmt.Errorf("failed to resolve oauth user: %w", err)
	}

	s.metrics.RecordLogin(model.LoginMethodOAuth, metrics.ResultSuccess)
	slog.Info("oauth login",
		slog.Int64("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return s.issue(user)
}

// CurrentUser は指定IDのユーザーを返す。存在しない場合はmodel.ErrNotFoundを返す。
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, model.ErrNotFound)
	}
	return user, nil
}

// VerifyToken はトークンを検証してクレームを返す。
func (s *Service) VerifyToken(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

func (s *Service) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.EmailOrEmpty())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsClientError はエラーが利用者の入力や認証情報に起因するかを返す。
func IsClientError(err error) bool {
	return errors.Is(err, model.ErrValidation) ||
		errors.Is(err, model.ErrConflict) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrInvalidCredential) ||
		errors.Is(err, model.ErrAuthentication)
}
