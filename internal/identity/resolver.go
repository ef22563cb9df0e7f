// Package identity はログイン方式ごとの本人情報を1つのユーザー行に名寄せする。
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sharediary/internal/model"
	"github.com/hitoshi/sharediary/internal/repository"
)

// Assertion はログイン時に得られた本人情報。空文字列の項目は「情報なし」として扱う。
type Assertion struct {
	OpenID       string
	Email        string
	Name         string
	LoginMethod  string
	PasswordHash string
	GoogleID     string
	AppleID      string
}

// ResolverConfig は名寄せの設定。
type ResolverConfig struct {
	// OwnerOpenID、OwnerEmail のいずれかに一致する新規ユーザーはadminとして作成する。
	OwnerOpenID string
	OwnerEmail  string
	// Now は現在時刻を返す。nilの場合はtime.Now。
	Now func() time.Time
}

// Resolver は本人情報から正規のユーザー行を検索または作成する。
type Resolver struct {
	users  repository.UserRepository
	config ResolverConfig
}

// NewResolver はResolverを生成する。
// OwnerEmailはログイン時のメールアドレスと同じく前後の空白を除いて小文字化する。
func NewResolver(users repository.UserRepository, config ResolverConfig) *Resolver {
	config.OwnerOpenID = strings.TrimSpace(config.OwnerOpenID)
	config.OwnerEmail = strings.ToLower(strings.TrimSpace(config.OwnerEmail))
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Resolver{users: users, config: config}
}

// Resolve はassertionに対応するユーザーを返す。
//
// openIdがあればopenIdで、なければemailで検索する。openIdで見つからない場合は
// 同じemailでopenId未設定の行があればそれに紐付ける。
// 見つからなければ新規作成し、見つかればNULLの項目だけを埋めてlastSignedInを更新する。
// 同時作成で一意制約に当たった場合は1回だけ検索からやり直す。
func (r *Resolver) Resolve(ctx context.Context, a Assertion) (*model.User, error) {
	if a.OpenID == "" && a.Email == "" {
		return nil, fmt.Errorf("openId or email is required: %w", model.ErrValidation)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		user, err := r.resolveOnce(ctx, a)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		lastErr = err
		slog.Warn("identity upsert raced, retrying",
			slog.String("open_id", a.OpenID),
			slog.String("email", a.Email),
		)
	}
	return nil, fmt.Errorf("failed to resolve identity: %w", lastErr)
}

func (r *Resolver) resolveOnce(ctx context.Context, a Assertion) (*model.User, error) {
	now := r.config.Now()

	existing, emailTaken, err := r.lookup(ctx, a)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if emailTaken {
			a.Email = ""
		}
		id, err := r.users.Create(ctx, r.newUser(a, now))
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		slog.Info("user created",
			slog.Int64("user_id", id),
			slog.String("login_method", a.LoginMethod),
		)
		return r.reload(ctx, id)
	}

	patch, err := r.mergePatch(ctx, existing, a, now)
	if err != nil {
		return nil, err
	}
	if err := r.users.UpdateLinkage(ctx, existing.ID, patch); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to update user linkage: %w", err)
		}
		// 他の行が同じプロバイダーIDを持っている。紐付けは諦めてログイン時刻だけ更新する
		slog.Warn("identity linkage conflicts with another user",
			slog.Int64("user_id", existing.ID),
			slog.String("google_id", a.GoogleID),
			slog.String("apple_id", a.AppleID),
		)
		if err := r.users.UpdateLinkage(ctx, existing.ID, repository.UserPatch{SignedInAt: now}); err != nil {
			return nil, fmt.Errorf("failed to update last signed in: %w", err)
		}
	}
	return r.reload(ctx, existing.ID)
}

// lookup は検索キーの優先順位に従って既存ユーザーを探す。
// emailTakenは、emailが別のopenIdを持つ行で使われていて新規行に付けられないことを表す。
func (r *Resolver) lookup(ctx context.Context, a Assertion) (user *model.User, emailTaken bool, err error) {
	if a.OpenID != "" {
		user, err = r.users.FindByOpenID(ctx, a.OpenID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to find user by openId: %w", err)
		}
		if user != nil || a.Email == "" {
			return user, false, nil
		}
	}

	user, err = r.users.FindByEmail(ctx, a.Email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user by email: %w", err)
	}
	// emailの行が別のopenIdに紐付いている場合は別人として扱う
	if user != nil && a.OpenID != "" && user.OpenID != nil && *user.OpenID != a.OpenID {
		slog.Warn("identity conflict: email belongs to a different openId",
			slog.Int64("email_user_id", user.ID),
			slog.String("open_id", a.OpenID),
		)
		return nil, true, nil
	}
	return user, false, nil
}

// newUser はassertionの空でない項目から新規ユーザーを組み立てる。
func (r *Resolver) newUser(a Assertion, now time.Time) *model.User {
	role := model.RoleUser
	if r.isOwner(a) {
		role = model.RoleAdmin
	}
	return &model.User{
		OpenID:       model.StringPtr(a.OpenID),
		Email:        model.StringPtr(a.Email),
		Name:         model.StringPtr(a.Name),
		LoginMethod:  model.StringPtr(a.LoginMethod),
		PasswordHash: model.StringPtr(a.PasswordHash),
		GoogleID:     model.StringPtr(a.GoogleID),
		AppleID:      model.StringPtr(a.AppleID),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastSignedIn: now,
	}
}

// mergePatch は既存行で未設定の項目だけを埋めるパッチを作る。
// 設定済みの項目と異なる値が来た場合は警告ログを出して無視する。
func (r *Resolver) mergePatch(ctx context.Context, u *model.User, a Assertion, now time.Time) (repository.UserPatch, error) {
	patch := repository.UserPatch{SignedInAt: now}

	fill := func(field string, current *string, incoming string) *string {
		if incoming == "" {
			return nil
		}
		if current == nil || *current == "" {
			return &incoming
		}
		if *current != incoming && field != "name" && field != "loginMethod" {
			slog.Warn("identity field already set, ignoring new value",
				slog.Int64("user_id", u.ID),
				slog.String("field", field),
			)
		}
		return nil
	}

	patch.OpenID = fill("openId", u.OpenID, a.OpenID)
	patch.Name = fill("name", u.Name, a.Name)
	patch.LoginMethod = fill("loginMethod", u.LoginMethod, a.LoginMethod)
	patch.PasswordHash = fill("passwordHash", u.PasswordHash, a.PasswordHash)
	patch.GoogleID = fill("googleId", u.GoogleID, a.GoogleID)
	patch.AppleID = fill("appleId", u.AppleID, a.AppleID)

	if email := fill("email", u.Email, a.Email); email != nil {
		// openIdの行にemailを付ける前に、そのemailが別の行に無いか確認する
		other, err := r.users.FindByEmail(ctx, *email)
		if err != nil {
			return patch, fmt.Errorf("failed to find user by email: %w", err)
		}
		if other != nil && other.ID != u.ID {
			slog.Warn("identity conflict: openId and email resolve to different users",
				slog.Int64("open_id_user_id", u.ID),
				slog.Int64("email_user_id", other.ID),
			)
		} else {
			patch.Email = email
		}
	}

	return patch, nil
}

func (r *Resolver) isOwner(a Assertion) bool {
	if r.config.OwnerOpenID != "" && a.OpenID == r.config.OwnerOpenID {
		return true
	}
	return r.config.OwnerEmail != "" && strings.EqualFold(strings.TrimSpace(a.Email), r.config.OwnerEmail)
}

// reload は書き込み後の正規の行を読み直す。
func (r *Resolver) reload(ctx context.Context, id int64) (*model.User, error) {
	user, err := r.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d vanished after write: %w", id, model.ErrNotFound)
	}
	return user, nil
}
