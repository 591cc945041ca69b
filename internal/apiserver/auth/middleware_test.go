package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/model"
)

// fakeUserGetter 固定返回预置用户
type fakeUserGetter struct {
	users map[string]*model.User
}

func (f *fakeUserGetter) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return f.users[id], nil
}

// TestIsPublicRoute 免认证路由判定
func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{"POST", "/api/auth/signup", true},
		{"POST", "/api/auth/login", true},
		{"POST", "/api/auth/logout", true},
		{"GET", "/api/auth/profile", false},
		{"PUT", "/api/auth/profile", false},
		{"GET", "/health", true},
		{"GET", "/metrics", true},

		// 活动浏览是公开的
		{"GET", "/api/events", true},
		{"GET", "/api/events/evt-a1b2c3", true},

		// 写操作与用户子树需要认证
		{"POST", "/api/events", false},
		{"PUT", "/api/events/evt-a1b2c3", false},
		{"DELETE", "/api/events/evt-a1b2c3", false},
		{"POST", "/api/events/evt-a1b2c3/register", false},
		{"GET", "/api/events/evt-a1b2c3/registered-users", false},
		{"GET", "/api/events/user/my-events", false},
		{"GET", "/api/events/user/registered", false},
		{"GET", "/api/events/admin/users", false},

		{"POST", "/api/payment/create-order", false},
		{"POST", "/api/payment/verify", false},
		{"POST", "/api/upload/image", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isPublicRoute(tt.method, tt.path))
		})
	}
}

// newAuthedServer 包了认证中间件的测试服务，业务 handler 回显 AuthUser
func newAuthedServer(t *testing.T, getter UserGetter) http.Handler {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := GetAuthUser(r.Context()); u != nil {
			w.Header().Set("X-Auth-User", u.ID)
		}
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(testCfg, getter)(next)
}

// TestMiddleware_NoToken 缺少令牌返回 401
func TestMiddleware_NoToken(t *testing.T) {
	srv := newAuthedServer(t, &fakeUserGetter{users: map[string]*model.User{}})

	req := httptest.NewRequest("GET", "/api/auth/profile", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestMiddleware_InvalidToken 伪造令牌返回 401
func TestMiddleware_InvalidToken(t *testing.T) {
	srv := newAuthedServer(t, &fakeUserGetter{users: map[string]*model.User{}})

	req := httptest.NewRequest("GET", "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestMiddleware_DeletedUser 令牌有效但用户已删除，返回 401
func TestMiddleware_DeletedUser(t *testing.T) {
	srv := newAuthedServer(t, &fakeUserGetter{users: map[string]*model.User{}})

	token, err := GenerateToken(testCfg, "usr-gone", "gone@example.com", "user")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestMiddleware_ValidToken 有效令牌注入 AuthUser
func TestMiddleware_ValidToken(t *testing.T) {
	getter := &fakeUserGetter{users: map[string]*model.User{
		"usr-1": {ID: "usr-1", Email: "alice@example.com", Role: model.UserRoleUser},
	}}
	srv := newAuthedServer(t, getter)

	token, err := GenerateToken(testCfg, "usr-1", "alice@example.com", "user")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usr-1", rec.Header().Get("X-Auth-User"))
}

// TestMiddleware_PublicRouteBypassesAuth 公开路由无令牌也放行
func TestMiddleware_PublicRouteBypassesAuth(t *testing.T) {
	srv := newAuthedServer(t, &fakeUserGetter{users: map[string]*model.User{}})

	req := httptest.NewRequest("GET", "/api/events", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Auth-User"))
}

// TestAdminOnly 角色校验
func TestAdminOnly(t *testing.T) {
	handler := AdminOnly(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// 未认证
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/api/events/admin/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 普通用户
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/events/admin/users", nil)
	req = req.WithContext(WithAuthUser(req.Context(), &AuthUser{ID: "usr-1", Role: "user"}))
	handler(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 管理员
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/events/admin/users", nil)
	req = req.WithContext(WithAuthUser(req.Context(), &AuthUser{ID: "usr-2", Role: "admin"}))
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
