package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect は接続先のSQL方言を表す。
type Dialect string

// 対応している方言
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// sqlitePragmas はSQLite接続ごとに適用するPRAGMA。
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

// DialectOf はDATABASE_URLのスキームから方言を判定する。
func DialectOf(databaseURL string) (Dialect, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, nil
	case strings.HasPrefix(databaseURL, "file:"), strings.HasPrefix(databaseURL, "sqlite:"):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database url scheme: %q", MaskURL(databaseURL))
	}
}

// Open はDATABASE_URLに応じてPostgreSQLまたはSQLiteの接続を開く。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sql.DB, Dialect, error) {
	dialect, err := DialectOf(databaseURL)
	if err != nil {
		return nil, "", err
	}

	var db *sql.DB
	switch dialect {
	case DialectPostgres:
		db, err = sql.Open("postgres", databaseURL)
	case DialectSQLite:
		db, err = sql.Open("sqlite", SQLiteDSN(databaseURL))
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// 書き込みロック競合を避けるため単一接続に寄せる
		db.SetMaxOpenConns(1)
	}

	return db, dialect, nil
}

// SQLiteDSN は"sqlite:"または"file:"形式のURLをmodernc.org/sqlite用のDSNへ変換する。
func SQLiteDSN(databaseURL string) string {
	path := databaseURL
	path = strings.TrimPrefix(path, "sqlite://")
	path = strings.TrimPrefix(path, "sqlite:")
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqlitePragmas
}

// Rebind は"?"プレースホルダを方言に合わせて書き換える。
// PostgreSQLでは"$1, $2, ..."に置換する。文字列リテラル内の"?"は扱わない。
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// SupportsReturning はINSERT ... RETURNINGで採番IDを受け取るかを返す。
func (d Dialect) SupportsReturning() bool {
	return d == DialectPostgres
}

// IsUniqueViolation は一意制約違反のエラーかを判定する。
// PostgreSQLはSQLSTATE 23505で判定する。
// SQLiteは拡張エラーコードを見て、取れない場合はメッセージで判定する。
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// MaskURL はデータベースURLのパスワード部分をマスクする。
func MaskURL(databaseURL string) string {
	at := strings.Index(databaseURL, "@")
	if at < 0 {
		return databaseURL
	}
	scheme := strings.Index(databaseURL, "://")
	if scheme < 0 || scheme > at {
		return databaseURL
	}
	userInfo := databaseURL[scheme+3 : at]
	colon := strings.Index(userInfo, ":")
	if colon < 0 {
		return databaseURL
	}
	return databaseURL[:scheme+3+colon+1] + "****" + databaseURL[at:]
}
