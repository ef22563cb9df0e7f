package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DevJWTSecret は開発環境でJWT_SECRET未設定時に使う既知の署名鍵。
// この鍵で署名されたトークンは誰でも偽造できるため、開発用ログインは無効化する。
const DevJWTSecret = "your-secret-key-change-in-production"

// AppEnvDevelopment は開発モードを表すAPP_ENVの値。
const AppEnvDevelopment = "development"

// 検証範囲
const (
	minBcryptCost = 4
	maxBcryptCost = 31
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:./diary.sqlite"`

	// Token
	JWTSecret string `env:"JWT_SECRET"`

	// Password hashing
	HashWorkers int `env:"HASH_WORKERS" envDefault:"0"`
	BcryptCost  int `env:"BCRYPT_COST" envDefault:"10"`

	// Identity
	OwnerOpenID string `env:"OWNER_OPEN_ID"`
	OwnerEmail  string `env:"OWNER_EMAIL"`

	// OAuth
	GoogleClientID     string   `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string   `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string   `env:"GOOGLE_REDIRECT_URL"`
	DevLogin           bool     `env:"DEV_LOGIN" envDefault:"false"`
	AppSchemes         []string `env:"APP_SCHEMES" envDefault:"exp,exps,sharediary" envSeparator:","`

	// Rate Limit（1分あたり・IPごと）
	RateLimitAuth int `env:"RATE_LIMIT_AUTH" envDefault:"30"`

	// Server
	Port    int    `env:"PORT" envDefault:"3000"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`
	// リバースプロキシ配下でX-Forwarded-ForとX-Real-IPを信頼する
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	// Cookie
	SessionCookieName string `env:"SESSION_COOKIE_NAME" envDefault:"authToken"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"" envSeparator:","`
}

// Load は環境変数からConfigを読み込む。
// 開発モードではカレントディレクトリの.envも読み込む（既存の環境変数が優先）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") == AppEnvDevelopment {
		// .envが無いのは正常
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	var missing []string
	if cfg.JWTSecret == "" {
		if cfg.IsDevelopment() {
			cfg.JWTSecret = DevJWTSecret
		} else {
			missing = append(missing, "JWT_SECRET")
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.HashWorkers <= 0 {
		cfg.HashWorkers = runtime.NumCPU()
	}
	if cfg.BcryptCost < minBcryptCost || cfg.BcryptCost > maxBcryptCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", minBcryptCost, maxBcryptCost, cfg.BcryptCost)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT out of range: %d", cfg.Port)
	}
	if cfg.RateLimitAuth <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_AUTH must be positive, got %d", cfg.RateLimitAuth)
	}
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = "authToken"
	}

	cfg.AppSchemes = compact(cfg.AppSchemes, true)
	cfg.CORSAllowedOrigins = compact(cfg.CORSAllowedOrigins, false)

	return cfg, nil
}

// IsDevelopment は開発モードで起動しているかを返す。
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == AppEnvDevelopment
}

// DevLoginEnabled はダミーコードによる開発用ログインを許可するかを返す。
// DEV_LOGINが有効で、かつ署名鍵が既知の開発用既定値でない場合のみtrue。
func (c *Config) DevLoginEnabled() bool {
	return c.DevLogin && c.JWTSecret != "" && c.JWTSecret != DevJWTSecret
}

// GoogleOAuthEnabled はGoogle OAuthの設定が揃っているかを返す。
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// compact は前後の空白を除去し、空要素を取り除く。
func compact(values []string, lower bool) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if lower {
			v = strings.ToLower(v)
		}
		out = append(out, v)
	}
	return out
}
