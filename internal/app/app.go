// Package app はアプリケーションの起動・依存関係の組み立て・サブコマンドの実行を行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/sharediary/internal/auth"
	"github.com/hitoshi/sharediary/internal/config"
	"github.com/hitoshi/sharediary/internal/database"
	"github.com/hitoshi/sharediary/internal/diary"
	"github.com/hitoshi/sharediary/internal/group"
	"github.com/hitoshi/sharediary/internal/handler"
	"github.com/hitoshi/sharediary/internal/identity"
	"github.com/hitoshi/sharediary/internal/logger"
	"github.com/hitoshi/sharediary/internal/metrics"
	"github.com/hitoshi/sharediary/internal/middleware"
	"github.com/hitoshi/sharediary/internal/oauthbridge"
	"github.com/hitoshi/sharediary/internal/repository"
	"github.com/hitoshi/sharediary/internal/security"
)

// サーバー設定
const (
	maxPortAttempts  = 20
	dbPingTimeout    = 5 * time.Second
	providerTimeout  = 10 * time.Second
	shutdownTimeout  = 30 * time.Second
	readWriteTimeout = 15 * time.Second
	idleTimeout      = 60 * time.Second
)

// ErrNoFreePort は試行範囲内に空きポートが見つからなかったことを表す。
var ErrNoFreePort = errors.New("no free port available")

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでログを再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでコマンドのcontextがキャンセルされる。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Stores はサービス層が使う永続化層の実装をまとめたもの。
type Stores struct {
	Users   repository.UserRepository
	Groups  repository.GroupRepository
	Diaries repository.DiaryRepository
}

// UnavailableStores はデータベースに接続できない場合の縮退ストアを返す。
func UnavailableStores() Stores {
	return Stores{
		Users:   repository.UnavailableUsers{},
		Groups:  repository.UnavailableGroups{},
		Diaries: repository.UnavailableDiaries{},
	}
}

// SQLStores はSQLデータベースを使うストアを返す。
func SQLStores(db *sql.DB, dialect database.Dialect) Stores {
	return Stores{
		Users:   repository.NewSQLUserRepo(db, dialect),
		Groups:  repository.NewSQLGroupRepo(db, dialect),
		Diaries: repository.NewSQLDiaryRepo(db, dialect),
	}
}

// openStores はデータベースを開いてストアを返す。
// 接続できない場合は縮退ストアで起動を続け、書き込みは503で応答する。
func openStores(ctx context.Context, cfg *config.Config) (Stores, func()) {
	db, dialect, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		slog.Warn("database not available, starting in degraded mode", slog.String("error", err.Error()))
		return UnavailableStores(), func() {}
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		slog.Warn("database not available, starting in degraded mode",
			slog.String("database_url", database.MaskURL(cfg.DatabaseURL)),
			slog.String("error", err.Error()),
		)
		return UnavailableStores(), func() {}
	}

	slog.Info("database connection established",
		slog.String("dialect", string(dialect)),
		slog.String("database_url", database.MaskURL(cfg.DatabaseURL)),
	)
	return SQLStores(db, dialect), func() { db.Close() }
}

// NewOAuthProvider は設定に応じたOAuthプロバイダーを返す。
// Google OAuthが設定されていればGoogle、開発用ログインが有効なら開発用プロバイダー、
// どちらでもなければnilを返す。
func NewOAuthProvider(cfg *config.Config, guard security.OutboundGuard) auth.OAuthProvider {
	switch {
	case cfg.GoogleOAuthEnabled():
		return auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			HTTPClient:   guard.NewSafeClient(providerTimeout),
		})
	case cfg.DevLoginEnabled():
		slog.Warn("development login is enabled")
		return auth.NewDevOAuthProvider(cfg.BaseURL)
	default:
		return nil
	}
}

// NewHandler は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 返した関数はバックグラウンド処理を停止する。
func NewHandler(cfg *config.Config, stores Stores, m metrics.MetricsCollector, gatherer prometheus.Gatherer) (http.Handler, func()) {
	// 1. セキュリティサービスの初期化
	guard := security.NewOutboundGuard()
	sanitizer := security.NewTextSanitizer()

	// 2. 認証
	resolver := identity.NewResolver(stores.Users, identity.ResolverConfig{
		OwnerOpenID: cfg.OwnerOpenID,
		OwnerEmail:  cfg.OwnerEmail,
	})
	hasher := auth.NewPasswordHasher(cfg.BcryptCost, cfg.HashWorkers, m)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret)
	authService := auth.NewService(stores.Users, resolver, hasher, tokens, NewOAuthProvider(cfg, guard), m)

	// 3. ドメインサービスの初期化
	groupService := group.NewService(stores.Groups, stores.Users, sanitizer)
	diaryService := diary.NewService(stores.Diaries, groupService, sanitizer, guard)

	// 4. ルーターの構築
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 && cfg.IsDevelopment() {
		origins = []string{middleware.AnyOrigin}
	}
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitAuth), m)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		Metrics:            m,
		Gatherer:           gatherer,
		CORSAllowedOrigins: origins,
		TrustProxy:         cfg.TrustProxy,
		RateLimiter:        rateLimiter,
		TokenVerifier:      tokens,
		UserFinder:         stores.Users,

		AuthService:  authService,
		OAuthService: authService,
		Redirects:    oauthbridge.NewRedirectValidator(cfg.AppSchemes),
		Session: handler.SessionConfig{
			CookieName: cfg.SessionCookieName,
			MaxAge:     auth.TokenTTL,
		},
		BaseURL: cfg.BaseURL,

		GroupService: groupService,
		DiaryService: diaryService,
	})

	return router, rateLimiter.Stop
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、PORTから空きポートを探してHTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, migrateFirst bool) error {
	if migrateFirst {
		if err := runMigrate(cfg, true); err != nil {
			slog.Warn("startup migration failed", slog.String("error", err.Error()))
		}
	}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. 永続化層
	stores, closeStores := openStores(ctx, cfg)
	defer closeStores()

	// 3. ルーター
	router, stopBackground := NewHandler(cfg, stores, collector, reg)
	defer stopBackground()

	// 4. HTTPサーバーの起動
	ln, err := listenFirstFree(net.Listen, "", cfg.Port, maxPortAttempts)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  readWriteTimeout,
		WriteTimeout: readWriteTimeout,
		IdleTimeout:  idleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

type listenFunc func(network, address string) (net.Listener, error)

// listenFirstFree はportから順に最大attempts個のポートで待ち受けを試み、最初に成功したものを返す。
// 使用中以外の理由で失敗した場合はその場でエラーを返す。
func listenFirstFree(listen listenFunc, host string, port, attempts int) (net.Listener, error) {
	for i := 0; i < attempts; i++ {
		candidate := port + i
		if candidate > 65535 {
			break
		}
		ln, err := listen("tcp", net.JoinHostPort(host, fmt.Sprint(candidate)))
		if err == nil {
			if i > 0 {
				slog.Info("port in use, using next free port",
					slog.Int("requested", port),
					slog.Int("port", candidate),
				)
			}
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("failed to listen on port %d: %w", candidate, err)
		}
	}
	return nil, fmt.Errorf("ports %d-%d: %w", port, port+attempts-1, ErrNoFreePort)
}

// runMigrate はデータベースマイグレーションを実行する。
// upがtrueなら未適用のマイグレーションをすべて適用し、falseなら直近の1つを戻す。
func runMigrate(cfg *config.Config, up bool) error {
	slog.Info("running database migrations",
		slog.String("database_url", database.MaskURL(cfg.DatabaseURL)),
		slog.Bool("up", up),
	)

	if up {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else {
		if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
