package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/config"
	"github.com/example/campus-rooms/internal/testfixtures"
)

// setTestEnv points configuration at a throwaway SQLite file.
func setTestEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ROOMBOOK_ENV_FILE", filepath.Join(dir, "absent.env"))
	t.Setenv("ROOMBOOK_CONFIG_FILE", "")
	t.Setenv("ROOMBOOK_JWT_SECRET", "command-test-secret")
	t.Setenv("ROOMBOOK_DB_DRIVER", "sqlite")
	t.Setenv("ROOMBOOK_DB_DSN", "file:"+filepath.Join(dir, "roombook.db"))
	t.Setenv("ROOMBOOK_LOG_LEVEL", "error")
	t.Setenv("ROOMBOOK_ADMIN_PASSWORD", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCommandIsIdempotent(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "applied "))
	assert.NotContains(t, out, "applied 0 ")

	out, err = execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "applied 0 migration(s)\n", out)
}

func TestCreateAdminCommand(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "users", "create-admin",
		"--email", "Registrar@Campus.Example", "--name", "Registrar", "--password", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, "created administrator registrar@campus.example (id 1)\n", out)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := execute(t, "users", "create-admin",
			"--email", "registrar@campus.example", "--password", "correct-horse-battery")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create administrator")
	})

	t.Run("password from environment", func(t *testing.T) {
		t.Setenv("ROOMBOOK_ADMIN_PASSWORD", "another-long-password")
		_, err := execute(t, "users", "create-admin", "--email", "second@campus.example")
		require.NoError(t, err)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := execute(t, "users", "create-admin", "--email", "third@campus.example", "--password", "short")
		require.Error(t, err)
	})

	t.Run("email is required", func(t *testing.T) {
		_, err := execute(t, "users", "create-admin", "--password", "correct-horse-battery")
		require.Error(t, err)
	})
}

func TestCompleteBookingsCommand(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "bookings", "complete")
	require.NoError(t, err)
	assert.Equal(t, "completed 0 booking(s)\n", out)
}

func TestCommandsRequireSecret(t *testing.T) {
	setTestEnv(t)
	t.Setenv("ROOMBOOK_JWT_SECRET", "")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROOMBOOK_JWT_SECRET")
}

func TestBuildAppServesAPI(t *testing.T) {
	store := testfixtures.NewStore(t)
	env := environment{
		cfg: config.Config{
			JWTSecret:          "build-app-secret",
			JWTIssuer:          "roombook",
			TokenTTL:           time.Hour,
			LoginRatePerMinute: 10,
			LoginBurst:         5,
		},
		logger: testfixtures.DiscardLogger(),
	}

	a, err := buildApp(context.Background(), env, store)
	require.NoError(t, err)
	t.Cleanup(func() { a.close(env) })
	require.NotNil(t, a.sweeper)

	admin := testfixtures.NewUserFixture()
	_, err = application.NewUserService(store, testfixtures.HashPassword, nil).Bootstrap(context.Background(), admin.Input())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body, err := json.Marshal(map[string]string{"email": admin.Email, "password": admin.Password})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		Data struct {
			Token string `json:"token"`
			User  struct {
				Role string `json:"role"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "admin", login.Data.User.Role)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+login.Data.Token)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "roombook_http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), `route="/auth/login"`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBuildAppRejectsUnreachableRedis(t *testing.T) {
	env := environment{
		cfg: config.Config{
			JWTSecret: "build-app-secret",
			TokenTTL:  time.Hour,
			RedisAddr: "127.0.0.1:1",
		},
		logger: testfixtures.DiscardLogger(),
	}

	_, err := buildApp(context.Background(), env, testfixtures.NewStore(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
