// Package group はグループとメンバー管理のドメインロジックを提供する。
// すべての操作は呼び出したユーザーがグループのメンバーであることを要求する。
package group

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/sharediary/internal/model"
	"github.com/hitoshi/sharediary/internal/repository"
	"github.com/hitoshi/sharediary/internal/security"
)

const maxNameLength = 255

var (
	// ErrGroupNotFound はグループが存在しないことを表す。
	ErrGroupNotFound = fmt.Errorf("group not found: %w", model.ErrNotFound)

	// ErrNotMember は呼び出したユーザーがグループのメンバーでないことを表す。
	ErrNotMember = fmt.Errorf("not a member of the group: %w", model.ErrForbidden)

	// ErrMemberNotFound は削除対象のメンバーが存在しないことを表す。
	ErrMemberNotFound = fmt.Errorf("member not found: %w", model.ErrNotFound)

	// ErrUserNotFound は追加対象のユーザーが存在しないことを表す。
	ErrUserNotFound = fmt.Errorf("user not found: %w", model.ErrValidation)

	// ErrAlreadyMember は追加対象のユーザーが既にメンバーであることを表す。
	ErrAlreadyMember = fmt.Errorf("user is already a member: %w", model.ErrConflict)
)

// UserFinder はユーザーの存在確認に必要なインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// Service はグループ管理のサービス層。
type Service struct {
	groups    repository.GroupRepository
	users     UserFinder
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	groups repository.GroupRepository,
	users UserFinder,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		groups:    groups,
		users:     users,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// ListGroups はユーザーが所属するグループ一覧を返す。
func (s *Service) ListGroups(ctx context.Context, userID int64) ([]*model.Group, error) {
	groups, err := s.groups.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	if groups == nil {
		groups = []*model.Group{}
	}
	return groups, nil
}

// CreateGroup はグループを作成する。作成者はadminメンバーとして追加される。
func (s *Service) CreateGroup(ctx context.Context, userID int64, name string, description *string) (*model.Group, error) {
	name, err := s.validName(name)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	g := &model.Group{
		Name:        name,
		Description: s.optionalText(description),
		OwnerID:     userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.groups.CreateWithOwner(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	g.ID = id
	return g, nil
}

// GetGroup はグループを返す。
func (s *Service) GetGroup(ctx context.Context, userID, groupID int64) (*model.Group, error) {
	g, err := s.requireMember(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// UpdateGroup はグループ名・説明を更新する。nilの項目は変更しない。
func (s *Service) UpdateGroup(ctx context.Context, userID, groupID int64, name, description *string) (*model.Group, error) {
	if _, err := s.requireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}

	if name != nil {
		n, err := s.validName(*name)
		if err != nil {
			return nil, err
		}
		name = &n
	}
	if description != nil {
		d := s.sanitizer.Sanitize(*description)
		description = &d
	}

	if err := s.groups.Update(ctx, groupID, name, description, s.now().UTC()); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return s.findGroup(ctx, groupID)
}

// DeleteGroup はグループを削除する。メンバーと日記も削除される。
func (s *Service) DeleteGroup(ctx context.Context, userID, groupID int64) error {
	if _, err := s.requireMember(ctx, userID, groupID); err != nil {
		return err
	}
	if err := s.groups.Delete(ctx, groupID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// ListMembers はグループのメンバー一覧を返す。
func (s *Service) ListMembers(ctx context.Context, userID, groupID int64) ([]repository.MemberWithUser, error) {
	if _, err := s.requireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if members == nil {
		members = []repository.MemberWithUser{}
	}
	return members, nil
}

// AddMember はユーザーをグループに追加する。roleが空の場合はmemberとして追加する。
func (s *Service) AddMember(ctx context.Context, userID, groupID, targetUserID int64, role string) (*model.GroupMember, error) {
	if _, err := s.requireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}

	switch role {
	case "":
		role = model.MemberRoleMember
	case model.MemberRoleMember, model.MemberRoleAdmin:
	default:
		return nil, fmt.Errorf("invalid role %q: %w", role, model.ErrValidation)
	}

	target, err := s.users.FindByID(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	m := &model.GroupMember{
		GroupID:  groupID,
		UserID:   targetUserID,
		Role:     role,
		JoinedAt: s.now().UTC(),
	}
	id, err := s.groups.AddMember(ctx, m)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	m.ID = id
	return m, nil
}

// RemoveMember はユーザーをグループから外す。
func (s *Service) RemoveMember(ctx context.Context, userID, groupID, targetUserID int64) error {
	if _, err := s.requireMember(ctx, userID, groupID); err != nil {
		return err
	}
	removed, err := s.groups.RemoveMember(ctx, groupID, targetUserID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if !removed {
		return ErrMemberNotFound
	}
	return nil
}

// RequireMember はグループの存在とユーザーの所属を確認する。日記サービスからも使う。
func (s *Service) RequireMember(ctx context.Context, userID, groupID int64) error {
	_, err := s.requireMember(ctx, userID, groupID)
	return err
}

func (s *Service) requireMember(ctx context.Context, userID, groupID int64) (*model.Group, error) {
	g, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	m, err := s.groups.FindMember(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	if m == nil {
		return nil, ErrNotMember
	}
	return g, nil
}

func (s *Service) findGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	g, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

func (s *Service) validName(name string) (string, error) {
	name = s.sanitizer.Sanitize(name)
	if name == "" {
		return "", fmt.Errorf("group name is required: %w", model.ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("group name must be at most %d characters: %w", maxNameLength, model.ErrValidation)
	}
	return name, nil
}

// optionalText は無害化後に空になる値をnilにする。
func (s *Service) optionalText(v *string) *string {
	if v == nil {
		return nil
	}
	return model.StringPtr(s.sanitizer.Sanitize(*v))
}
