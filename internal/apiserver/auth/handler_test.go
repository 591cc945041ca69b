package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/model"
	"eventhub/internal/storage/storagetest"
)

// envelope 响应信封的测试侧镜像
type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func newTestHandler(t *testing.T) (*Handler, *storagetest.Store, *http.ServeMux) {
	t.Helper()
	store := storagetest.New()
	h := NewHandler(store, testCfg, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, store, mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// seedUser 直接在存储中创建用户
func seedUser(t *testing.T, store *storagetest.Store, email string, role model.UserRole, password string) *model.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	u := &model.User{
		ID:           "usr-" + email,
		Name:         "Seed User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, store.CreateUser(t.Context(), u))
	return u
}

// TestSignup 正常注册返回用户与令牌
func TestSignup(t *testing.T) {
	_, _, mux := newTestHandler(t)

	rec := postJSON(t, mux, "/api/auth/signup", map[string]any{
		"name":     "Alice",
		"email":    "Alice@Example.com",
		"password": "secret123",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "User registered successfully", env.Message)
	assert.NotEmpty(t, env.Data["token"])

	user := env.Data["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"], "邮箱归一化为小写")
	assert.Equal(t, "user", user["role"], "角色缺省为 user")
	assert.NotContains(t, rec.Body.String(), "password")
}

// TestSignup_DuplicateEmail 重复邮箱返回 400
func TestSignup_DuplicateEmail(t *testing.T) {
	_, store, mux := newTestHandler(t)
	seedUser(t, store, "alice@example.com", model.UserRoleUser, "secret123")

	rec := postJSON(t, mux, "/api/auth/signup", map[string]any{
		"name":     "Another Alice",
		"email":    "alice@example.com",
		"password": "secret456",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "User already exists with this email", env.Message)
}

// TestSignup_Validation 校验失败返回 400
func TestSignup_Validation(t *testing.T) {
	_, _, mux := newTestHandler(t)

	rec := postJSON(t, mux, "/api/auth/signup", map[string]any{
		"name":     "A",
		"email":    "alice@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, mux, "/api/auth/signup", map[string]any{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestLogin 正确凭证返回令牌
func TestLogin(t *testing.T) {
	_, store, mux := newTestHandler(t)
	seedUser(t, store, "alice@example.com", model.UserRoleUser, "secret123")

	rec := postJSON(t, mux, "/api/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "secret123",
		"role":     "user",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Login successful", env.Message)
	assert.NotEmpty(t, env.Data["token"])
}

// TestLogin_InvalidCredentials 密码错误与角色不匹配返回完全一致的 401
//
// role 是查找键的一部分：以 user 身份登录一个 admin 账号，
// 响应必须与密码错误不可区分。
func TestLogin_InvalidCredentials(t *testing.T) {
	_, store, mux := newTestHandler(t)
	seedUser(t, store, "admin@example.com", model.UserRoleAdmin, "secret123")

	wrongPassword := postJSON(t, mux, "/api/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "wrong-password",
		"role":     "admin",
	})
	wrongRole := postJSON(t, mux, "/api/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "secret123",
		"role":     "user",
	})
	noSuchUser := postJSON(t, mux, "/api/auth/login", map[string]any{
		"email":    "ghost@example.com",
		"password": "secret123",
		"role":     "user",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, wrongRole.Code)
	assert.Equal(t, http.StatusUnauthorized, noSuchUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), wrongRole.Body.String())
	assert.Equal(t, wrongPassword.Body.String(), noSuchUser.Body.String())
}

// TestLogin_RoleRequired 缺失或非法角色返回 400
func TestLogin_RoleRequired(t *testing.T) {
	_, _, mux := newTestHandler(t)

	rec := postJSON(t, mux, "/api/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestGetProfile 读取当前用户信息
func TestGetProfile(t *testing.T) {
	_, store, mux := newTestHandler(t)
	u := seedUser(t, store, "alice@example.com", model.UserRoleUser, "secret123")

	req := httptest.NewRequest("GET", "/api/auth/profile", nil)
	req = req.WithContext(WithAuthUser(req.Context(), &AuthUser{ID: u.ID, Email: u.Email, Role: "user"}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	user := env.Data["user"].(map[string]any)
	assert.Equal(t, u.Email, user["email"])
}

// TestUpdateProfile name 与 avatar 可更新
func TestUpdateProfile(t *testing.T) {
	_, store, mux := newTestHandler(t)
	u := seedUser(t, store, "alice@example.com", model.UserRoleUser, "secret123")

	raw, _ := json.Marshal(map[string]any{"name": "New Name", "avatar": "https://cdn/a.png"})
	req := httptest.NewRequest("PUT", "/api/auth/profile", bytes.NewReader(raw))
	req = req.WithContext(WithAuthUser(req.Context(), &AuthUser{ID: u.ID, Email: u.Email, Role: "user"}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	updated, err := store.GetUserByID(t.Context(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "https://cdn/a.png", updated.Avatar)
}

// TestUpdateProfile_BadName 名字边界仍然生效
func TestUpdateProfile_BadName(t *testing.T) {
	_, store, mux := newTestHandler(t)
	u := seedUser(t, store, "alice@example.com", model.UserRoleUser, "secret123")

	raw, _ := json.Marshal(map[string]any{"name": "x"})
	req := httptest.NewRequest("PUT", "/api/auth/profile", bytes.NewReader(raw))
	req = req.WithContext(WithAuthUser(req.Context(), &AuthUser{ID: u.ID, Email: u.Email, Role: "user"}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestLogout 登出只是确认，不吊销令牌
func TestLogout(t *testing.T) {
	_, _, mux := newTestHandler(t)

	rec := postJSON(t, mux, "/api/auth/logout", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Logged out successfully", env.Message)
}

// TestEnsureAdminUser 启动引导：不存在则创建，存在则跳过
func TestEnsureAdminUser(t *testing.T) {
	store := storagetest.New()

	require.NoError(t, EnsureAdminUser(store, "admin@example.com", "secret123"))
	u, err := store.GetUserByEmail(t.Context(), "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, model.UserRoleAdmin, u.Role)
	assert.True(t, CheckPassword("secret123", u.PasswordHash))

	// 再次调用不报错也不重复创建
	require.NoError(t, EnsureAdminUser(store, "admin@example.com", "secret123"))

	// 未配置时为 no-op
	require.NoError(t, EnsureAdminUser(store, "", ""))
}
