package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sharediary/internal/database"
	"github.com/hitoshi/sharediary/internal/model"
)

const diaryColumns = `id, group_id, user_id, title, content, image_url, created_at, updated_at`

const (
	diaryListByGroupQuery = `SELECT ` + diaryColumns + ` FROM diary_entries WHERE group_id = ? ORDER BY created_at DESC, id DESC`
	diaryFindByIDQuery    = `SELECT ` + diaryColumns + ` FROM diary_entries WHERE id = ?`
	diaryInsertQuery      = `INSERT INTO diary_entries (group_id, user_id, title, content, image_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	diaryUpdateQuery      = `UPDATE diary_entries SET title = COALESCE(?, title), content = COALESCE(?, content), image_url = COALESCE(?, image_url), updated_at = ? WHERE id = ?`
	diaryDeleteQuery      = `DELETE FROM diary_entries WHERE id = ?`
)

// SQLDiaryRepo はdatabase/sqlを使用した日記リポジトリ。
type SQLDiaryRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLDiaryRepo はSQLDiaryRepoを生成する。
func NewSQLDiaryRepo(db *sql.DB, dialect database.Dialect) *SQLDiaryRepo {
	return &SQLDiaryRepo{db: db, dialect: dialect}
}

// ListByGroupID はグループの日記を新しい順に返す。
func (r *SQLDiaryRepo) ListByGroupID(ctx context.Context, groupID int64) ([]*model.DiaryEntry, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(diaryListByGroupQuery), groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary entries: %w", err)
	}
	defer rows.Close()

	entries := []*model.DiaryEntry{}
	for rows.Next() {
		e, err := scanDiary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diary entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate diary entries: %w", err)
	}
	return entries, nil
}

// FindByID は指定IDの日記を取得する。見つからない場合はnilを返す。
func (r *SQLDiaryRepo) FindByID(ctx context.Context, id int64) (*model.DiaryEntry, error) {
	e, err := scanDiary(r.db.QueryRowContext(ctx, r.dialect.Rebind(diaryFindByIDQuery), id))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find diary entry by ID: %w", err)
	}
	return e, nil
}

// Create は日記を作成し、採番されたIDを返す。
func (r *SQLDiaryRepo) Create(ctx context.Context, entry *model.DiaryEntry) (int64, error) {
	id, err := insertReturningID(ctx, r.db, r.dialect, diaryInsertQuery,
		entry.GroupID, entry.UserID, entry.Title, entry.Content, entry.ImageURL,
		entry.CreatedAt.UTC(), entry.UpdatedAt.UTC(),
	)
	if err != nil {
		return 0, wrapWriteErr("insert diary entry", err)
	}
	return id, nil
}

// Update は日記を更新する。nilの項目は変更しない。
func (r *SQLDiaryRepo) Update(ctx context.Context, id int64, patch DiaryPatch) error {
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(diaryUpdateQuery),
		patch.Title, patch.Content, patch.ImageURL, patch.UpdatedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update diary entry: %w", err)
	}
	return expectAffected(result, "diary entry", id)
}

// Delete は指定IDの日記を削除する。
func (r *SQLDiaryRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(diaryDeleteQuery), id)
	if err != nil {
		return fmt.Errorf("failed to delete diary entry: %w", err)
	}
	return expectAffected(result, "diary entry", id)
}

func scanDiary(row rowScanner) (*model.DiaryEntry, error) {
	e := &model.DiaryEntry{}
	if err := row.Scan(&e.ID, &e.GroupID, &e.UserID, &e.Title, &e.Content, &e.ImageURL, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

// compile-time interface check
var _ DiaryRepository = (*SQLDiaryRepo)(nil)
