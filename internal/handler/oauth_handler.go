package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/sharediary/internal/auth"
	"github.com/hitoshi/sharediary/internal/model"
	"github.com/hitoshi/sharediary/internal/oauthbridge"
)

// ブリッジページの案内文
const (
	bridgeMessageProvider = "Googleアカウントでログインします"
	bridgeMessageDev      = "テスト用ログインとして実行します"
)

// OAuthServiceInterface はOAuthハンドラーが必要とするサービスインターフェース。
type OAuthServiceInterface interface {
	ExchangeOAuthCode(ctx context.Context, code, state string) (*auth.AuthResult, error)
	OAuthProvider() auth.OAuthProvider
}

// OAuthHandlerConfig はOAuthハンドラーの設定。
type OAuthHandlerConfig struct {
	BaseURL string
	Session SessionConfig
}

// OAuthHandler はモバイルアプリ向けOAuthブリッジのHTTPハンドラー。
type OAuthHandler struct {
	service   OAuthServiceInterface
	redirects *oauthbridge.RedirectValidator
	config    OAuthHandlerConfig
	validate  *validator.Validate
}

// NewOAuthHandler はOAuthHandlerを生成する。
func NewOAuthHandler(service OAuthServiceInterface, redirects *oauthbridge.RedirectValidator, config OAuthHandlerConfig) *OAuthHandler {
	return &OAuthHandler{
		service:   service,
		redirects: redirects,
		config:    config,
		validate:  newValidator(),
	}
}

type exchangeRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state" validate:"required"`
}

// AppAuth はアプリ内ブラウザに表示するログインページを返す。
// stateが無い場合はredirectUriから生成する。
// GET /app-auth?redirectUri=xxx&state=yyy
func (h *OAuthHandler) AppAuth(w http.ResponseWriter, r *http.Request) {
	provider := h.service.OAuthProvider()
	if provider == nil {
		http.Error(w, "oauth login is not configured", http.StatusServiceUnavailable)
		return
	}

	redirectURI := r.URL.Query().Get("redirectUri")
	state := r.URL.Query().Get("state")
	if state == "" {
		if redirectURI == "" {
			http.Error(w, "missing redirectUri or state", http.StatusBadRequest)
			return
		}
		state = oauthbridge.EncodeState(redirectURI)
	}

	if _, err := h.redirects.ResolveState(state); err != nil {
		slog.Warn("invalid app redirect", slog.String("error", err.Error()))
		http.Error(w, "invalid redirect", http.StatusBadRequest)
		return
	}
	// 比較は復号したstateの文字列で行う。url.URLの再文字列化はスキームやパスの表記を変える。
	if redirectURI != "" {
		if decoded, _ := oauthbridge.DecodeState(state); decoded != redirectURI {
			http.Error(w, "state does not match redirectUri", http.StatusBadRequest)
			return
		}
	}

	message := bridgeMessageProvider
	if _, ok := provider.(*auth.DevOAuthProvider); ok {
		message = bridgeMessageDev
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := oauthbridge.RenderPage(w, oauthbridge.PageData{
		Message:  message,
		LoginURL: provider.GetLoginURL(state),
	}); err != nil {
		slog.Error("failed to render bridge page", slog.String("error", err.Error()))
	}
}

// Mobile はプロバイダーからのリダイレクトを受け、stateが示すアプリのディープリンクへ転送する。
// 認可コードはここでは交換せず、アプリが/api/oauth/exchangeで交換する。
// コードの発行元も検証しない。開発用コードは開発用プロバイダーが有効な場合の交換でのみ受理される。
// GET /api/oauth/mobile?code=xxx&state=yyy
func (h *OAuthHandler) Mobile(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	redirect, err := h.redirects.ResolveState(state)
	if err != nil {
		slog.Warn("invalid oauth state", slog.String("error", err.Error()))
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, oauthbridge.BuildDeepLink(redirect, code, state), http.StatusFound)
}

// Callback はWebブラウザでのOAuthコールバックを処理する。
// コードを交換してセッションCookieを設定し、トップページへリダイレクトする。
// GET /api/oauth/callback?code=xxx&state=yyy
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	result, err := h.service.ExchangeOAuthCode(r.Context(), code, state)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			http.Error(w, "missing code or state", http.StatusBadRequest)
		case errors.Is(err, model.ErrAuthentication):
			slog.Warn("oauth callback rejected", slog.String("error", err.Error()))
			http.Error(w, "authentication failed", http.StatusUnauthorized)
		case errors.Is(err, model.ErrNotAvailable):
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		default:
			slog.Error("oauth callback failed", slog.String("error", err.Error()))
			http.Error(w, "authentication failed", http.StatusInternalServerError)
		}
		return
	}

	setSessionCookie(w, r, h.config.Session, result.Token)
	http.Redirect(w, r, h.config.BaseURL, http.StatusFound)
}

// Exchange はアプリが受け取った認可コードを交換し、ユーザーとトークンを返す。
// POST /api/oauth/exchange
func (h *OAuthHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.ExchangeOAuthCode(r.Context(), req.Code, req.State)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setSessionCookie(w, r, h.config.Session, result.Token)
	writeJSON(w, http.StatusOK, result)
}
