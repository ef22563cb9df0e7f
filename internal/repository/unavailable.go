package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/sharediary/internal/model"
)

// UnavailableUsers はデータベースに接続できない状態で使うUserRepositoryの縮退実装。
// 読み取りは「見つからない」を返し、書き込みはmodel.ErrNotAvailableを返す。
// グループ・日記も同じ方針のUnavailableGroups、UnavailableDiariesを使う。
type UnavailableUsers struct{}

func errUnavailable(op string) error {
	return fmt.Errorf("%s: %w", op, model.ErrNotAvailable)
}

func (UnavailableUsers) FindByID(context.Context, int64) (*model.User, error)      { return nil, nil }
func (UnavailableUsers) FindByOpenID(context.Context, string) (*model.User, error) { return nil, nil }
func (UnavailableUsers) FindByEmail(context.Context, string) (*model.User, error)  { return nil, nil }

func (UnavailableUsers) Create(context.Context, *model.User) (int64, error) {
	return 0, errUnavailable("create user")
}

func (UnavailableUsers) UpdateLinkage(context.Context, int64, UserPatch) error {
	return errUnavailable("update user linkage")
}

// UnavailableGroups はGroupRepositoryとしての縮退ストア。
type UnavailableGroups struct{}

func (UnavailableGroups) ListByUserID(context.Context, int64) ([]*model.Group, error) {
	return []*model.Group{}, nil
}
func (UnavailableGroups) FindByID(context.Context, int64) (*model.Group, error) { return nil, nil }
func (UnavailableGroups) CreateWithOwner(context.Context, *model.Group) (int64, error) {
	return 0, errUnavailable("create group")
}
func (UnavailableGroups) Update(context.Context, int64, *string, *string, time.Time) error {
	return errUnavailable("update group")
}
func (UnavailableGroups) Delete(context.Context, int64) error { return errUnavailable("delete group") }
func (UnavailableGroups) FindMember(context.Context, int64, int64) (*model.GroupMember, error) {
	return nil, nil
}
func (UnavailableGroups) ListMembers(context.Context, int64) ([]MemberWithUser, error) {
	return []MemberWithUser{}, nil
}
func (UnavailableGroups) AddMember(context.Context, *model.GroupMember) (int64, error) {
	return 0, errUnavailable("add member")
}
func (UnavailableGroups) RemoveMember(context.Context, int64, int64) (bool, error) {
	return false, errUnavailable("remove member")
}

// UnavailableDiaries はDiaryRepositoryとしての縮退ストア。
type UnavailableDiaries struct{}

func (UnavailableDiaries) ListByGroupID(context.Context, int64) ([]*model.DiaryEntry, error) {
	return []*model.DiaryEntry{}, nil
}
func (UnavailableDiaries) FindByID(context.Context, int64) (*model.DiaryEntry, error) {
	return nil, nil
}
func (UnavailableDiaries) Create(context.Context, *model.DiaryEntry) (int64, error) {
	return 0, errUnavailable("create diary entry")
}
func (UnavailableDiaries) Update(context.Context, int64, DiaryPatch) error {
	return errUnavailable("update diary entry")
}
func (UnavailableDiaries) Delete(context.Context, int64) error {
	return errUnavailable("delete diary entry")
}

// compile-time interface check
var (
	_ UserRepository  = UnavailableUsers{}
	_ GroupRepository = UnavailableGroups{}
	_ DiaryRepository = UnavailableDiaries{}
)
