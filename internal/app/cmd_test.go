package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/sharediary/internal/database"
	"github.com/hitoshi/sharediary/internal/oauthbridge"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(io.Discard)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_CallbackParse_PrintsCodeAndState(t *testing.T) {
	out, err := execute(t, "callback", "parse", "myapp://callback?code=abc123&state=xyz789")
	require.NoError(t, err)

	var cb oauthbridge.Callback
	require.NoError(t, json.Unmarshal([]byte(out), &cb), "raw: %s", out)
	assert.Equal(t, "abc123", cb.Code)
	assert.Equal(t, "xyz789", cb.State)
}

func TestRootCommand_CallbackParse_Strategies(t *testing.T) {
	for _, strategy := range []string{"auto", "url", "regexp"} {
		t.Run(strategy, func(t *testing.T) {
			out, err := execute(t, "callback", "parse", "--strategy", strategy,
				"exp://192.168.0.10:8081/--/oauth?code=c-1&state=s-1")
			require.NoError(t, err)

			var cb oauthbridge.Callback
			require.NoError(t, json.Unmarshal([]byte(out), &cb))
			assert.Equal(t, "c-1", cb.Code)
			assert.Equal(t, "s-1", cb.State)
		})
	}
}

func TestRootCommand_CallbackParse_UnknownStrategy_ReturnsError(t *testing.T) {
	_, err := execute(t, "callback", "parse", "--strategy", "magic", "myapp://callback?code=abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestRootCommand_CallbackParse_NoCode_ReturnsError(t *testing.T) {
	_, err := execute(t, "callback", "parse", "myapp://callback?state=xyz789")
	require.ErrorIs(t, err, oauthbridge.ErrNoCode)
}

func TestRootCommand_CallbackParse_MissingArgument_ReturnsError(t *testing.T) {
	_, err := execute(t, "callback", "parse")
	require.Error(t, err)
}

func TestRootCommand_UnknownCommand_ReturnsError(t *testing.T) {
	_, err := execute(t, "worker")
	require.Error(t, err)
}

func TestRootCommand_MigrateUpDown_SQLite(t *testing.T) {
	dbURL := "file:" + filepath.Join(t.TempDir(), "migrate.sqlite")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "migrate-secret")
	t.Setenv("DATABASE_URL", dbURL)

	_, err := execute(t, "migrate", "up")
	require.NoError(t, err)

	hasTable := func(name string) bool {
		db, _, err := database.Open(dbURL)
		require.NoError(t, err)
		defer db.Close()
		var n int
		require.NoError(t, db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
		).Scan(&n))
		return n == 1
	}
	assert.True(t, hasTable("users"))
	assert.True(t, hasTable("diary_entries"))

	// 2回目のupは変更なしで成功する
	_, err = execute(t, "migrate", "up")
	require.NoError(t, err)

	_, err = execute(t, "migrate", "down")
	require.NoError(t, err)
	assert.False(t, hasTable("diary_entries"))
	assert.True(t, hasTable("users"))
}

func TestRootCommand_Migrate_MissingSecret_ReturnsError(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialization failed")
}

func TestRootCommand_Healthcheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"Healthy", http.StatusOK, false},
		{"Unhealthy", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/health" {
					http.NotFound(w, r)
					return
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := execute(t, "healthcheck", "--url", srv.URL)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDefaultHealthcheckURL_UsesPort(t *testing.T) {
	t.Setenv("PORT", "8080")
	assert.Equal(t, "http://localhost:8080", defaultHealthcheckURL())

	t.Setenv("PORT", "")
	assert.Equal(t, "http://localhost:3000", defaultHealthcheckURL())
}
