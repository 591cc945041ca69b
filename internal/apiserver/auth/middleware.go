package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"eventhub/internal/apiserver/respond"
	"eventhub/internal/model"
)

// UserGetter 中间件查询用户是否仍然存在所需的最小接口
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// 免认证路由精确匹配
var publicExact = map[string]bool{
	"POST /api/auth/signup": true,
	"POST /api/auth/login":  true,
	"POST /api/auth/logout": true,
}

// 免认证路由前缀
var publicPrefixes = []string{
	"/health",
	"/metrics",
}

// isPublicRoute 判断请求是否免认证
//
// GET /api/events 与 GET /api/events/{id} 是公开的浏览接口；
// /api/events/user/... 与 /api/events/admin/... 不是单段 id，仍需认证。
func isPublicRoute(method, path string) bool {
	if publicExact[method+" "+path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if method == http.MethodGet {
		if path == "/api/events" {
			return true
		}
		if rest, ok := strings.CutPrefix(path, "/api/events/"); ok {
			if rest != "" && rest != "user" && rest != "admin" && !strings.Contains(rest, "/") {
				return true
			}
		}
	}
	return false
}

// Middleware 创建 JWT 认证中间件
//
// 令牌缺失、签名无效、已过期、或 subject 已不对应任何用户，一律 401。
// 通过后将 AuthUser 注入 context。
func Middleware(cfg Config, store UserGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// 提取 Bearer Token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respond.Error(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				respond.Error(w, http.StatusUnauthorized, "Invalid authorization header.")
				return
			}

			claims, err := ParseToken(cfg, parts[1])
			if err != nil {
				log.Printf("[auth] token parse error: %v", err)
				respond.Error(w, http.StatusUnauthorized, "Invalid token.")
				return
			}

			// 令牌有效但用户已被删除同样视为未认证
			user, err := store.GetUserByID(r.Context(), claims.Subject)
			if err != nil {
				log.Printf("[auth] GetUserByID error: %v", err)
				respond.Error(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if user == nil {
				respond.Error(w, http.StatusUnauthorized, "Invalid token. User not found.")
				return
			}

			ctx := WithAuthUser(r.Context(), &AuthUser{
				ID:    user.ID,
				Email: user.Email,
				Role:  string(user.Role),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly 管理员专属路由包装器
// 角色不足返回 403（凭证有效但权限不够）
func AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthUser(r.Context())
		if user == nil {
			respond.Error(w, http.StatusUnauthorized, "Access denied. Please authenticate.")
			return
		}
		if user.Role != string(model.UserRoleAdmin) {
			respond.Error(w, http.StatusForbidden, "Access denied. Admin only.")
			return
		}
		next(w, r)
	}
}
