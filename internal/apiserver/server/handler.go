// Package server 路由配置与核心基础设施
//
// 本文件定义 HTTP API 路由，将请求分发到各领域独立包：
//   - auth:    注册/登录/个人资料
//   - event:   活动 CRUD、报名、组织者视图、管理员用户列表
//   - payment: Razorpay 下单与验签报名
//   - upload:  活动图片上传
//
// metrics.go 提供 Prometheus 指标中间件。
package server

import (
	"net/http"

	"eventhub/internal/apiserver/auth"
	"eventhub/internal/apiserver/event"
	"eventhub/internal/apiserver/payment"
	"eventhub/internal/apiserver/respond"
	"eventhub/internal/apiserver/upload"
	"eventhub/internal/ratelimit"
	"eventhub/internal/storage"
)

// Handler 聚合路由所需的全部依赖
type Handler struct {
	store    storage.Store
	uploader upload.Uploader
	gateway  payment.OrderCreator

	authCfg   auth.Config
	uploadCfg upload.Config
	limiter   *ratelimit.Limiter

	razorpayKeyID     string
	razorpayKeySecret string

	metrics *Metrics
}

// Options Handler 依赖项
type Options struct {
	Store             storage.Store
	Uploader          upload.Uploader
	Gateway           payment.OrderCreator
	AuthConfig        auth.Config
	UploadConfig      upload.Config
	Limiter           *ratelimit.Limiter
	RazorpayKeyID     string
	RazorpayKeySecret string
}

// NewHandler 创建路由 Handler
func NewHandler(opts Options) *Handler {
	return &Handler{
		store:             opts.Store,
		uploader:          opts.Uploader,
		gateway:           opts.Gateway,
		authCfg:           opts.AuthConfig,
		uploadCfg:         opts.UploadConfig,
		limiter:           opts.Limiter,
		razorpayKeyID:     opts.RazorpayKeyID,
		razorpayKeySecret: opts.RazorpayKeySecret,
		metrics:           NewMetrics("eventhub"),
	}
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health  - 服务健康检查
//   - GET /metrics - Prometheus 指标
//
// 认证 (Auth):
//   - POST /api/auth/signup  - 注册
//   - POST /api/auth/login   - 登录
//   - GET  /api/auth/profile - 当前用户信息
//   - PUT  /api/auth/profile - 更新个人资料
//   - POST /api/auth/logout  - 登出
//
// 活动 (Event):
//   - GET    /api/events                       - 活动列表（公开，可过滤/搜索/分页）
//   - POST   /api/events                       - 创建活动
//   - GET    /api/events/{id}                  - 活动详情（公开）
//   - PUT    /api/events/{id}                  - 更新活动（组织者/管理员）
//   - DELETE /api/events/{id}                  - 删除活动（组织者/管理员）
//   - POST   /api/events/{id}/register         - 免费报名
//   - DELETE /api/events/{id}/register         - 取消报名
//   - GET    /api/events/{id}/registered-users - 报名名单
//   - GET    /api/events/user/my-events        - 我创建的活动
//   - GET    /api/events/user/registered       - 我报名的活动
//   - GET    /api/events/admin/users           - 用户列表（仅管理员）
//
// 支付 (Payment):
//   - POST /api/payment/create-order - 创建支付订单
//   - POST /api/payment/verify       - 验签并完成报名
//
// 上传 (Upload):
//   - POST /api/upload/image - 上传活动图片
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// Auth 接口
	authHandler := auth.NewHandler(h.store, h.authCfg, h.limiter)
	authHandler.RegisterRoutes(mux)

	// Event 接口
	eventHandler := event.NewHandler(h.store)
	eventHandler.RegisterRoutes(mux)

	// Payment 接口
	paymentHandler := payment.NewHandler(h.store, h.gateway, h.razorpayKeyID, h.razorpayKeySecret)
	paymentHandler.RegisterRoutes(mux)

	// Upload 接口
	uploadHandler := upload.NewHandler(h.uploader, h.uploadCfg)
	uploadHandler.RegisterRoutes(mux)

	// 404 信封，未匹配路由也返回统一 JSON
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Route not found")
	})

	// 应用指标中间件到 REST API
	apiHandler := h.metrics.MetricsMiddleware(mux)

	// 应用认证中间件
	authedHandler := auth.Middleware(h.authCfg, h.store)(apiHandler)

	// 应用 CORS 中间件
	return corsMiddleware(authedHandler)
}

// Health 服务健康检查
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, http.StatusOK, "Server is running", map[string]any{
		"status": "ok",
	})
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
