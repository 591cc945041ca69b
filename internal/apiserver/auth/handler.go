package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"eventhub/internal/apiserver/respond"
	"eventhub/internal/model"
	"eventhub/internal/ratelimit"
	"eventhub/internal/storage"
)

// Handler 认证 HTTP 处理器
type Handler struct {
	store   storage.UserStore
	cfg     Config
	limiter *ratelimit.Limiter
}

// NewHandler 创建认证处理器
// limiter 可为 nil（不限流）
func NewHandler(store storage.UserStore, cfg Config, limiter *ratelimit.Limiter) *Handler {
	if limiter == nil {
		limiter = ratelimit.NewLimiter(nil)
	}
	return &Handler{store: store, cfg: cfg, limiter: limiter}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/signup", h.Signup)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("GET /api/auth/profile", h.GetProfile)
	mux.HandleFunc("PUT /api/auth/profile", h.UpdateProfile)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
}

// ============================================================================
// 请求类型
// ============================================================================

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateProfileRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

// ============================================================================
// Handlers
// ============================================================================

// Signup 用户注册
//
// 邮箱唯一性最终由存储层唯一索引兜底：并发注册同一邮箱时
// 后写入方收到 ErrDuplicate，映射为 400 冲突。
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := model.ValidateSignup(req.Name, req.Email, req.Password, req.Role); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.limiter.CheckSignup(r.Context(), req.Email); err != nil {
		respond.Error(w, http.StatusTooManyRequests, err.Error())
		return
	}

	role := model.UserRole(req.Role)
	if req.Role == "" {
		role = model.UserRoleUser
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("[auth.signup] HashPassword error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	now := time.Now()
	user := &model.User{
		ID:           newUserID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			respond.Error(w, http.StatusBadRequest, "User already exists with this email")
			return
		}
		log.Printf("[auth.signup] CreateUser error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := GenerateToken(h.cfg, user.ID, user.Email, string(user.Role))
	if err != nil {
		log.Printf("[auth.signup] GenerateToken error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("[auth] User registered: %s (%s)", user.Email, user.ID)
	respond.OK(w, http.StatusOK, "User registered successfully", map[string]any{
		"user":  user.Public(),
		"token": token,
	})
}

// Login 用户登录
//
// role 是查找键的一部分（按 {email, role} 精确匹配）。
// 查无此人与密码错误返回同一个 401，不泄露哪一半出错。
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !model.ValidEmail(req.Email) {
		respond.Error(w, http.StatusBadRequest, "Please provide a valid email")
		return
	}
	if req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "Password is required")
		return
	}
	if !model.ValidUserRole(req.Role) {
		respond.Error(w, http.StatusBadRequest, "Valid role required")
		return
	}

	if err := h.limiter.CheckLogin(r.Context(), req.Email); err != nil {
		respond.Error(w, http.StatusTooManyRequests, err.Error())
		return
	}

	user, err := h.store.GetUserByEmailRole(r.Context(), req.Email, model.UserRole(req.Role))
	if err != nil {
		log.Printf("[auth.login] GetUserByEmailRole error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		respond.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := GenerateToken(h.cfg, user.ID, user.Email, string(user.Role))
	if err != nil {
		log.Printf("[auth.login] GenerateToken error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.limiter.ResetLogin(r.Context(), req.Email)
	log.Printf("[auth] User logged in: %s", user.Email)
	respond.OK(w, http.StatusOK, "Login successful", map[string]any{
		"user":  user.Public(),
		"token": token,
	})
}

// GetProfile 获取当前用户信息
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	authUser := GetAuthUser(r.Context())
	if authUser == nil {
		respond.Error(w, http.StatusUnauthorized, "Access denied. Please authenticate.")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), authUser.ID)
	if err != nil {
		log.Printf("[auth.profile] GetUserByID error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil {
		respond.Error(w, http.StatusNotFound, "User not found")
		return
	}

	respond.OK(w, http.StatusOK, "Profile retrieved successfully", map[string]any{
		"user": user.Public(),
	})
}

// UpdateProfile 更新个人资料（仅 name / avatar）
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	authUser := GetAuthUser(r.Context())
	if authUser == nil {
		respond.Error(w, http.StatusUnauthorized, "Access denied. Please authenticate.")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len(name) < 2 || len(name) > 50 {
			respond.Error(w, http.StatusBadRequest, "Name must be between 2 and 50 characters")
			return
		}
		fields["name"] = name
	}
	if req.Avatar != nil {
		fields["avatar"] = *req.Avatar
	}

	user, err := h.store.UpdateUserProfile(r.Context(), authUser.ID, fields)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("[auth.profile] UpdateUserProfile error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.OK(w, http.StatusOK, "Profile updated successfully", map[string]any{
		"user": user.Public(),
	})
}

// Logout 登出
// 令牌无法在服务端吊销（无黑名单），登出只是客户端清除 cookie；
// 服务端仅确认请求。
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, http.StatusOK, "Logged out successfully", nil)
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员用户存在（启动时调用）
// 如果配置了 adminEmail 且数据库中不存在该用户，则自动创建
func EnsureAdminUser(store storage.UserStore, adminEmail, adminPassword string) error {
	if adminEmail == "" || adminPassword == "" {
		return nil
	}

	ctx := context.Background()
	existing, err := store.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		log.Printf("[auth] Admin user already exists: %s (%s)", adminEmail, existing.ID)
		return nil
	}

	hash, err := HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           newUserID(),
		Name:         "Admin",
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         model.UserRoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] Created admin user: %s (%s)", adminEmail, user.ID)
	return nil
}

// newUserID 生成用户 ID，格式 usr-xxxxxxxxxxxx
func newUserID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "usr-" + hex.EncodeToString(b)
}
