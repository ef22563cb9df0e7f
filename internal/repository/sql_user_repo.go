package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sharediary/internal/database"
	"github.com/hitoshi/sharediary/internal/model"
)

const userColumns = `id, open_id, name, email, login_method, password_hash, google_id, apple_id, role, created_at, updated_at, last_signed_in`

const (
	userInsertQuery = `INSERT INTO users (open_id, name, email, login_method, password_hash, google_id, apple_id, role, created_at, updated_at, last_signed_in) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// 設定済みの列はCOALESCEで保持し、NULLの列にだけ新しい値を入れる
	userUpdateLinkageQuery = `UPDATE users SET open_id = COALESCE(open_id, ?), email = COALESCE(email, ?), name = COALESCE(name, ?), login_method = COALESCE(login_method, ?), password_hash = COALESCE(password_hash, ?), google_id = COALESCE(google_id, ?), apple_id = COALESCE(apple_id, ?), last_signed_in = ?, updated_at = ? WHERE id = ?`
)

// SQLUserRepo はdatabase/sqlを使用したユーザーリポジトリ。
// PostgreSQLとSQLiteの両方で動作する。
type SQLUserRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLUserRepo はSQLUserRepoを生成する。
func NewSQLUserRepo(db *sql.DB, dialect database.Dialect) *SQLUserRepo {
	return &SQLUserRepo{db: db, dialect: dialect}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := r.findOne(ctx, "id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByOpenID はopenIdでユーザーを検索する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindByOpenID(ctx context.Context, openID string) (*model.User, error) {
	user, err := r.findOne(ctx, "open_id", openID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by openId: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.findOne(ctx, "email", email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// findOne はcolumnの値が一致するユーザーを1件取得する。columnは固定値のみ渡すこと。
func (r *SQLUserRepo) findOne(ctx context.Context, column string, value any) (*model.User, error) {
	query := r.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create はユーザーを作成し、採番されたIDを返す。
func (r *SQLUserRepo) Create(ctx context.Context, user *model.User) (int64, error) {
	id, err := insertReturningID(ctx, r.db, r.dialect, userInsertQuery,
		user.OpenID, user.Name, user.Email, user.LoginMethod, user.PasswordHash,
		user.GoogleID, user.AppleID, user.Role,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(), user.LastSignedIn.UTC(),
	)
	if err != nil {
		return 0, wrapWriteErr("insert user", err)
	}
	return id, nil
}

// UpdateLinkage はNULLの列にのみpatchの値を書き込み、last_signed_inを更新する。
func (r *SQLUserRepo) UpdateLinkage(ctx context.Context, id int64, patch UserPatch) error {
	signedIn := patch.SignedInAt.UTC()
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(userUpdateLinkageQuery),
		patch.OpenID, patch.Email, patch.Name, patch.LoginMethod, patch.PasswordHash,
		patch.GoogleID, patch.AppleID, signedIn, signedIn, id,
	)
	if err != nil {
		return wrapWriteErr("update user linkage", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.OpenID, &user.Name, &user.Email, &user.LoginMethod, &user.PasswordHash,
		&user.GoogleID, &user.AppleID, &user.Role, &user.CreatedAt, &user.UpdatedAt, &user.LastSignedIn,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*SQLUserRepo)(nil)
