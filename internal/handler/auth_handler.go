package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/sharediary/internal/auth"
	"github.com/hitoshi/sharediary/internal/cookies"
	"github.com/hitoshi/sharediary/internal/middleware"
	"github.com/hitoshi/sharediary/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, name string) (*auth.AuthResult, error)
	LoginWithPassword(ctx context.Context, email, password string) (*auth.AuthResult, error)
	LoginWithProvider(ctx context.Context, provider, providerID, email, name string) (*auth.AuthResult, error)
}

// SessionConfig はセッションCookieの設定。
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
}

// AuthHandler はメール・プロバイダーログインのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	session  SessionConfig
	validate *validator.Validate
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, session SessionConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		session:  session,
		validate: newValidator(),
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"omitempty,max=255"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type googleLoginRequest struct {
	GoogleID string `json:"googleId" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"omitempty,max=255"`
}

type appleLoginRequest struct {
	AppleID string `json:"appleId" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Name    string `json:"name" validate:"omitempty,max=255"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	User *model.User `json:"user"`
}

// Register はメールアドレスとパスワードでアカウントを作成する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewEmailRegisteredError())
			return
		}
		handleServiceError(w, err)
		return
	}
	h.respondWithSession(w, r, result)
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.LoginWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		// 未登録とパスワード不一致は同じ応答にする
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalidCredential) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewLoginFailedError())
			return
		}
		handleServiceError(w, err)
		return
	}
	h.respondWithSession(w, r, result)
}

// Google はアプリが取得したGoogleアカウント情報でログインする。
// POST /api/auth/google
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	h.loginWithProvider(w, r, model.LoginMethodGoogle, req.GoogleID, req.Email, req.Name)
}

// Apple はアプリが取得したAppleアカウント情報でログインする。
// POST /api/auth/apple
func (h *AuthHandler) Apple(w http.ResponseWriter, r *http.Request) {
	var req appleLoginRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	h.loginWithProvider(w, r, model.LoginMethodApple, req.AppleID, req.Email, req.Name)
}

func (h *AuthHandler) loginWithProvider(w http.ResponseWriter, r *http.Request, provider, providerID, email, name string) {
	result, err := h.service.LoginWithProvider(r.Context(), provider, providerID, email, name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.respondWithSession(w, r, result)
}

// Logout はセッションCookieを削除する。トークン自体はステートレスなので失効させない。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, cookies.Clear(r, h.session.CookieName))
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// Me は現在のユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// respondWithSession はセッションCookieを設定し、ユーザーとトークンを返す。
func (h *AuthHandler) respondWithSession(w http.ResponseWriter, r *http.Request, result *auth.AuthResult) {
	setSessionCookie(w, r, h.session, result.Token)
	writeJSON(w, http.StatusOK, result)
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, session SessionConfig, token string) {
	http.SetCookie(w, cookies.Session(r, session.CookieName, token, session.MaxAge))
}
