// Package diary はグループ内の日記エントリのドメインロジックを提供する。
package diary

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

const (
	maxTitleLength   = 255
	maxContentLength = 20000
)

// ErrEntryNotFound は日記が存在しないことを表す。
var ErrEntryNotFound = fmt.Errorf("diary entry not found: %w", model.ErrNotFound)

// MembershipChecker はグループの存在と所属を確認するインターフェース。
// group.Serviceが実装する。
type MembershipChecker interface {
	RequireMember(ctx context.Context, userID, groupID int64) error
}

// EntryInput は日記の作成・更新の入力。更新ではnilの項目を変更しない。
type EntryInput struct {
	Title    *string
	Content  *string
	ImageURL *string
}

// Service は日記のサービス層。
type Service struct {
	diaries   repository.DiaryRepository
	members   MembershipChecker
	sanitizer security.TextSanitizer
	guard     security.OutboundGuard
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	diaries repository.DiaryRepository,
	members MembershipChecker,
	sanitizer security.TextSanitizer,
	guard security.OutboundGuard,
) *Service {
	return &Service{
		diaries:   diaries,
		members:   members,
		sanitizer: sanitizer,
		guard:     guard,
		now:       time.Now,
	}
}

// ListEntries はグループの日記を新しい順に返す。
func (s *Service) ListEntries(ctx context.Context, userID, groupID int64) ([]*model.DiaryEntry, error) {
	if err := s.members.RequireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	entries, err := s.diaries.ListByGroupID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary entries: %w", err)
	}
	if entries == nil {
		entries = []*model.DiaryEntry{}
	}
	return entries, nil
}

// CreateEntry はグループに日記を投稿する。本文は必須。
func (s *Service) CreateEntry(ctx context.Context, userID, groupID int64, in EntryInput) (*model.DiaryEntry, error) {
	if err := s.members.RequireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	if in.Content == nil {
		return nil, fmt.Errorf("content is required: %w", model.ErrValidation)
	}

	clean, err := s.clean(in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entry := &model.DiaryEntry{
		GroupID:   groupID,
		UserID:    userID,
		Title:     model.StringPtr(model.Deref(clean.Title)),
		Content:   *clean.Content,
		ImageURL:  model.StringPtr(model.Deref(clean.ImageURL)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := s.diaries.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to create diary entry: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// GetEntry は日記を返す。
func (s *Service) GetEntry(ctx context.Context, userID, entryID int64) (*model.DiaryEntry, error) {
	return s.findForMember(ctx, userID, entryID)
}

// UpdateEntry は日記を更新する。
func (s *Service) UpdateEntry(ctx context.Context, userID, entryID int64, in EntryInput) (*model.DiaryEntry, error) {
	if _, err := s.findForMember(ctx, userID, entryID); err != nil {
		return nil, err
	}

	clean, err := s.clean(in)
	if err != nil {
		return nil, err
	}

	patch := repository.DiaryPatch{
		Title:     clean.Title,
		Content:   clean.Content,
		ImageURL:  clean.ImageURL,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.diaries.Update(ctx, entryID, patch); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to update diary entry: %w", err)
	}
	return s.findEntry(ctx, entryID)
}

// DeleteEntry は日記を削除する。
func (s *Service) DeleteEntry(ctx context.Context, userID, entryID int64) error {
	if _, err := s.findForMember(ctx, userID, entryID); err != nil {
		return err
	}
	if err := s.diaries.Delete(ctx, entryID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("failed to delete diary entry: %w", err)
	}
	return nil
}

func (s *Service) findForMember(ctx context.Context, userID, entryID int64) (*model.DiaryEntry, error) {
	entry, err := s.findEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.members.RequireMember(ctx, userID, entry.GroupID); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) findEntry(ctx context.Context, entryID int64) (*model.DiaryEntry, error) {
	entry, err := s.diaries.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to find diary entry: %w", err)
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// clean は入力を無害化・検証する。
// 本文は空にできない。タイトルと画像URLは空文字列を指定すると空になる。
func (s *Service) clean(in EntryInput) (EntryInput, error) {
	var out EntryInput

	if in.Title != nil {
		title := s.sanitizer.Sanitize(*in.Title)
		if utf8.RuneCountInString(title) > maxTitleLength {
			return out, fmt.Errorf("title must be at most %d characters: %w", maxTitleLength, model.ErrValidation)
		}
		out.Title = &title
	}

	if in.Content != nil {
		content := s.sanitizer.Sanitize(*in.Content)
		if content == "" {
			return out, fmt.Errorf("content is required: %w", model.ErrValidation)
		}
		if utf8.RuneCountInString(content) > maxContentLength {
			return out, fmt.Errorf("content must be at most %d characters: %w", maxContentLength, model.ErrValidation)
		}
		out.Content = &content
	}

	if in.ImageURL != nil {
		imageURL := *in.ImageURL
		if imageURL != "" {
			if err := s.guard.ValidateURL(imageURL); err != nil {
				return out, fmt.Errorf("invalid image url: %v: %w", err, model.ErrValidation)
			}
		}
		out.ImageURL = &imageURL
	}

	return out, nil
}
