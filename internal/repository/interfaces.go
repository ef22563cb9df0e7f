// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/sharediary/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// 同一ユーザーの同時作成などの競合を呼び出し側で再試行できるよう区別して返す。
var ErrDuplicate = errors.New("duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByOpenID はopenIdでユーザーを検索する。見つからない場合はnilを返す。
	FindByOpenID(ctx context.Context, openID string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDを返す。
	// 一意制約に違反した場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) (int64, error)

	// UpdateLinkage はNULLの列にのみpatchの値を書き込み、last_signed_inを更新する。
	// 設定済みの列は上書きしない。
	UpdateLinkage(ctx context.Context, id int64, patch UserPatch) error
}

// UserPatch はUpdateLinkageで書き込む値。nilの項目は変更しない。
type UserPatch struct {
	OpenID       *string
	Email        *string
	Name         *string
	LoginMethod  *string
	PasswordHash *string
	GoogleID     *string
	AppleID      *string
	SignedInAt   time.Time
}

// GroupRepository はグループとメンバーの永続化インターフェース。
type GroupRepository interface {
	// ListByUserID はユーザーが所属するグループ一覧を返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.Group, error)

	// FindByID は指定IDのグループを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Group, error)

	// CreateWithOwner はグループを作成し、作成者をadminメンバーとして同一トランザクションで追加する。
	CreateWithOwner(ctx context.Context, group *model.Group) (int64, error)

	// Update はグループ名・説明を更新する。nilの項目は変更しない。
	Update(ctx context.Context, id int64, name, description *string, now time.Time) error

	// Delete は指定IDのグループを削除する。メンバーと日記はCASCADE削除される。
	Delete(ctx context.Context, id int64) error

	// FindMember はグループ内の指定ユーザーのメンバー情報を返す。非メンバーの場合はnilを返す。
	FindMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error)

	// ListMembers はグループのメンバー一覧をユーザー情報付きで返す。
	ListMembers(ctx context.Context, groupID int64) ([]MemberWithUser, error)

	// AddMember はメンバーを追加する。既に所属している場合はErrDuplicateを返す。
	AddMember(ctx context.Context, member *model.GroupMember) (int64, error)

	// RemoveMember はメンバーを削除する。削除した行があればtrueを返す。
	RemoveMember(ctx context.Context, groupID, userID int64) (bool, error)
}

// DiaryRepository は日記エントリの永続化インターフェース。
type DiaryRepository interface {
	// ListByGroupID はグループの日記を新しい順に返す。
	ListByGroupID(ctx context.Context, groupID int64) ([]*model.DiaryEntry, error)

	// FindByID は指定IDの日記を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.DiaryEntry, error)

	// Create は日記を作成し、採番されたIDを返す。
	Create(ctx context.Context, entry *model.DiaryEntry) (int64, error)

	// Update は日記を更新する。nilの項目は変更しない。
	Update(ctx context.Context, id int64, patch DiaryPatch) error

	// Delete は指定IDの日記を削除する。
	Delete(ctx context.Context, id int64) error
}

// DiaryPatch はDiaryRepository.Updateで書き込む値。
type DiaryPatch struct {
	Title     *string
	Content   *string
	ImageURL  *string
	UpdatedAt time.Time
}

// MemberWithUser はメンバー情報とユーザーの表示名を結合した構造体。
type MemberWithUser struct {
	model.GroupMember
	UserName  *string `json:"userName"`
	UserEmail *string `json:"userEmail"`
}
