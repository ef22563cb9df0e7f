package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/sharediary/internal/database"
)

// execQuerier は*sql.DBと*sql.Txの共通部分。
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertReturningID はINSERTを実行し採番されたIDを返す。
// PostgreSQLはRETURNING句、SQLiteはLastInsertIdで取得する。
func insertReturningID(ctx context.Context, q execQuerier, dialect database.Dialect, query string, args ...any) (int64, error) {
	if dialect.SupportsReturning() {
		var id int64
		if err := q.QueryRowContext(ctx, dialect.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := q.ExecContext(ctx, dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// wrapWriteErr は一意制約違反をErrDuplicateに変換し、それ以外はメッセージを付けて包む。
func wrapWriteErr(op string, err error) error {
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// isNoRows はsql.ErrNoRowsかを判定する。
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
