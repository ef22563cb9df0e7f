package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sharediary/internal/metrics"
	"github.com/hitoshi/sharediary/internal/middleware"
	"github.com/hitoshi/sharediary/internal/oauthbridge"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector
	Gatherer           prometheus.Gatherer // nilの場合は/metricsを公開しない
	CORSAllowedOrigins []string
	TrustProxy         bool                    // trueの場合はX-Forwarded-For等からクライアントIPを得る
	RateLimiter        *middleware.RateLimiter // nilの場合はレート制限しない
	TokenVerifier      middleware.TokenVerifier
	UserFinder         middleware.UserFinder

	// 認証
	AuthService  AuthServiceInterface
	OAuthService OAuthServiceInterface
	Redirects    *oauthbridge.RedirectValidator
	Session      SessionConfig
	BaseURL      string

	// グループ・日記
	GroupService GroupServiceInterface
	DiaryService DiaryServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	[RealIP] → Logging → Recovery → SecurityHeaders → CORS → OriginGuard → (RateLimit | Session)
//
// /api/auth/*はIPごとのレート制限を受け、/api/auth/meとグループ・日記はセッションを要求する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}

	r := chi.NewRouter()
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, m))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewOriginGuardMiddleware(deps.Session.CookieName, deps.CORSAllowedOrigins))

	session := middleware.NewSessionMiddleware(deps.Session.CookieName, deps.TokenVerifier, deps.UserFinder)
	authHandler := NewAuthHandler(deps.AuthService, deps.Session)
	oauthHandler := NewOAuthHandler(deps.OAuthService, deps.Redirects, OAuthHandlerConfig{
		BaseURL: deps.BaseURL,
		Session: deps.Session,
	})
	groupHandler := NewGroupHandler(deps.GroupService)
	diaryHandler := NewDiaryHandler(deps.DiaryService)

	// --- 認証不要のルート ---
	r.Get("/api/health", Health(nil))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/auth", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware("auth"))
		}
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/google", authHandler.Google)
		r.Post("/apple", authHandler.Apple)
		r.Post("/logout", authHandler.Logout)
		r.With(session).Get("/me", authHandler.Me)
	})

	// OAuthブリッジ
	r.Get("/app-auth", oauthHandler.AppAuth)
	r.Route("/api/oauth", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware("oauth"))
		}
		r.Get("/mobile", oauthHandler.Mobile)
		r.Get("/callback", oauthHandler.Callback)
		r.Post("/exchange", oauthHandler.Exchange)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(session)

		r.Route("/api/groups", func(r chi.Router) {
			r.Get("/", groupHandler.List)
			r.Post("/", groupHandler.Create)

			r.Route("/{groupID}", func(r chi.Router) {
				r.Get("/", groupHandler.Get)
				r.Patch("/", groupHandler.Update)
				r.Delete("/", groupHandler.Delete)

				r.Get("/members", groupHandler.ListMembers)
				r.Post("/members", groupHandler.AddMember)
				r.Delete("/members/{userID}", groupHandler.RemoveMember)

				r.Get("/diaries", diaryHandler.List)
				r.Post("/diaries", diaryHandler.Create)
			})
		})

		r.Route("/api/diaries/{entryID}", func(r chi.Router) {
			r.Get("/", diaryHandler.Get)
			r.Patch("/", diaryHandler.Update)
			r.Delete("/", diaryHandler.Delete)
		})
	})

	return r
}
