package model

import (
	"errors"
	"fmt"
)

// ドメイン層のエラー分類。ハンドラー層でerrors.Isによりステータスコードへ変換する。
var (
	// ErrValidation は入力値の欠落・形式不正を表す。
	ErrValidation = errors.New("validation failed")

	// ErrConflict は登録済みメールアドレスでの再登録を表す。
	ErrConflict = errors.New("already exists")

	// ErrNotFound は対象レコードが存在しないことを表す。
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredential はパスワード不一致、またはパスワード未設定アカウントへのログインを表す。
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrAuthentication はトークン不正・期限切れ・未指定を表す。理由は呼び出し元に区別させない。
	ErrAuthentication = errors.New("unauthenticated")

	// ErrForbidden はグループ非メンバーによる操作を表す。
	ErrForbidden = errors.New("forbidden")

	// ErrNotAvailable は永続化層に到達できないことを表す。
	ErrNotAvailable = errors.New("persistence not available")
)

// APIError は統一エラーフォーマットを表す。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, group, diary, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeEmailRegistered    = "EMAIL_ALREADY_REGISTERED"
	ErrCodeLoginFailed        = "LOGIN_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "NOT_A_MEMBER"
	ErrCodeGroupNotFound      = "GROUP_NOT_FOUND"
	ErrCodeEntryNotFound      = "DIARY_ENTRY_NOT_FOUND"
	ErrCodeMemberNotFound     = "MEMBER_NOT_FOUND"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力不正エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewConflictError は既存データとの競合エラーを生成する。
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  message,
		Category: "validation",
	}
}

// NewEmailRegisteredError は登録済みメールアドレスのエラーを生成する。
func NewEmailRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailRegistered,
		Message:  "Email already registered",
		Category: "auth",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
// 未登録メールとパスワード不一致で同じ文言を返し、アカウントの存在を推測させない。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "Invalid email or password",
		Category: "auth",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
	}
}

// NewForbiddenError はグループ非メンバーのエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You are not a member of this group",
		Category: "group",
	}
}

// NewNotFoundError は対象不明の未検出エラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Not found",
		Category: "system",
	}
}

// NewGroupNotFoundError はグループ未検出エラーを生成する。
func NewGroupNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeGroupNotFound,
		Message:  "Group not found",
		Category: "group",
	}
}

// NewEntryNotFoundError は日記未検出エラーを生成する。
func NewEntryNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  "Diary entry not found",
		Category: "diary",
	}
}

// NewMemberNotFoundError はメンバー未検出エラーを生成する。
func NewMemberNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  "member not found",
		Category: "group",
	}
}

// NewServiceUnavailableError は永続化層停止時のエラーを生成する。
func NewServiceUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeServiceUnavailable,
		Message:  "Database is not available",
		Category: "system",
	}
}
