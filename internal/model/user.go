// Package model はドメインモデルを定義する。
package model

import "time"

// ログイン方式
const (
	LoginMethodEmail  = "email"
	LoginMethodGoogle = "google"
	LoginMethodApple  = "apple"
	LoginMethodOAuth  = "oauth"
)

// ユーザーロール
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User はサービス利用ユーザーを表す。
// OpenID、Emailの少なくとも一方が設定されていなければ解決できない。
// nullableな列はポインタで表現する。
type User struct {
	ID           int64     `json:"id"`
	OpenID       *string   `json:"openId"`
	Email        *string   `json:"email"`
	Name         *string   `json:"name"`
	LoginMethod  *string   `json:"loginMethod"`
	PasswordHash *string   `json:"-"`
	GoogleID     *string   `json:"googleId"`
	AppleID      *string   `json:"appleId"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LastSignedIn time.Time `json:"lastSignedIn"`
}

// EmailOrEmpty はEmailが未設定の場合に空文字列を返す。
func (u *User) EmailOrEmpty() string {
	return Deref(u.Email)
}

// HasPassword はパスワード認証用のハッシュを持つかどうかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// StringPtr は空文字列をnilとして扱うポインタを返す。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref はnilを空文字列として文字列ポインタを参照する。
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
