package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/sharediary/internal/database"
	"github.com/hitoshi/sharediary/internal/model"
)

const groupColumns = `g.id, g.name, g.description, g.owner_id, g.created_at, g.updated_at`

const (
	groupListByUserQuery = `SELECT ` + groupColumns + ` FROM diary_groups g INNER JOIN group_members m ON m.group_id = g.id WHERE m.user_id = ? ORDER BY g.created_at DESC, g.id DESC`
	groupFindByIDQuery   = `SELECT ` + groupColumns + ` FROM diary_groups g WHERE g.id = ?`
	groupInsertQuery     = `INSERT INTO diary_groups (name, description, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	groupUpdateQuery     = `UPDATE diary_groups SET name = COALESCE(?, name), description = COALESCE(?, description), updated_at = ? WHERE id = ?`
	groupDeleteQuery     = `DELETE FROM diary_groups WHERE id = ?`

	memberFindQuery   = `SELECT id, group_id, user_id, role, joined_at FROM group_members WHERE group_id = ? AND user_id = ?`
	memberListQuery   = `SELECT m.id, m.group_id, m.user_id, m.role, m.joined_at, u.name, u.email FROM group_members m INNER JOIN users u ON u.id = m.user_id WHERE m.group_id = ? ORDER BY m.joined_at ASC, m.id ASC`
	memberInsertQuery = `INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`
	memberDeleteQuery = `DELETE FROM group_members WHERE group_id = ? AND user_id = ?`
)

// SQLGroupRepo はdatabase/sqlを使用したグループリポジトリ。
type SQLGroupRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLGroupRepo はSQLGroupRepoを生成する。
func NewSQLGroupRepo(db *sql.DB, dialect database.Dialect) *SQLGroupRepo {
	return &SQLGroupRepo{db: db, dialect: dialect}
}

// ListByUserID はユーザーが所属するグループ一覧を返す。
func (r *SQLGroupRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Group, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(groupListByUserQuery), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []*model.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// FindByID は指定IDのグループを取得する。見つからない場合はnilを返す。
func (r *SQLGroupRepo) FindByID(ctx context.Context, id int64) (*model.Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, r.dialect.Rebind(groupFindByIDQuery), id))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find group by ID: %w", err)
	}
	return g, nil
}

// CreateWithOwner はグループを作成し、作成者をadminメンバーとして追加する。
func (r *SQLGroupRepo) CreateWithOwner(ctx context.Context, group *model.Group) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := insertReturningID(ctx, tx, r.dialect, groupInsertQuery,
		group.Name, group.Description, group.OwnerID, group.CreatedAt.UTC(), group.UpdatedAt.UTC(),
	)
	if err != nil {
		return 0, wrapWriteErr("insert group", err)
	}

	if _, err := insertReturningID(ctx, tx, r.dialect, memberInsertQuery,
		id, group.OwnerID, model.MemberRoleAdmin, group.CreatedAt.UTC(),
	); err != nil {
		return 0, wrapWriteErr("insert owner member", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// Update はグループ名・説明を更新する。nilの項目は変更しない。
func (r *SQLGroupRepo) Update(ctx context.Context, id int64, name, description *string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(groupUpdateQuery), name, description, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return expectAffected(result, "group", id)
}

// Delete は指定IDのグループを削除する。
func (r *SQLGroupRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(groupDeleteQuery), id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return expectAffected(result, "group", id)
}

// FindMember はグループ内の指定ユーザーのメンバー情報を返す。非メンバーの場合はnilを返す。
func (r *SQLGroupRepo) FindMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error) {
	m := &model.GroupMember{}
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(memberFindQuery), groupID, userID).
		Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.JoinedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return m, nil
}

// ListMembers はグループのメンバー一覧を参加順に返す。
func (r *SQLGroupRepo) ListMembers(ctx context.Context, groupID int64) ([]MemberWithUser, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(memberListQuery), groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []MemberWithUser{}
	for rows.Next() {
		var m MemberWithUser
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.JoinedAt, &m.UserName, &m.UserEmail); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// AddMember はメンバーを追加する。既に所属している場合はErrDuplicateを返す。
func (r *SQLGroupRepo) AddMember(ctx context.Context, member *model.GroupMember) (int64, error) {
	id, err := insertReturningID(ctx, r.db, r.dialect, memberInsertQuery,
		member.GroupID, member.UserID, member.Role, member.JoinedAt.UTC(),
	)
	if err != nil {
		return 0, wrapWriteErr("insert member", err)
	}
	return id, nil
}

// RemoveMember はメンバーを削除する。削除した行があればtrueを返す。
func (r *SQLGroupRepo) RemoveMember(ctx context.Context, groupID, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(memberDeleteQuery), groupID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func scanGroup(row rowScanner) (*model.Group, error) {
	g := &model.Group{}
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return g, nil
}

// expectAffected は更新・削除の対象行が存在しなかった場合にErrNotFoundを返す。
func expectAffected(result sql.Result, kind string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, model.ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ GroupRepository = (*SQLGroupRepo)(nil)
