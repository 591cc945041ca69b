package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"eventhub/internal/apiserver/auth"
	"eventhub/internal/apiserver/respond"
	"eventhub/internal/metrics"
	"eventhub/internal/model"
	"eventhub/internal/storage"
)

// Handler 支付 HTTP 处理器
type Handler struct {
	store     storage.Store
	gateway   OrderCreator
	keyID     string
	keySecret string
}

// NewHandler 创建支付处理器
func NewHandler(store storage.Store, gateway OrderCreator, keyID, keySecret string) *Handler {
	return &Handler{store: store, gateway: gateway, keyID: keyID, keySecret: keySecret}
}

// RegisterRoutes 注册支付相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/payment/create-order", h.CreateOrder)
	mux.HandleFunc("POST /api/payment/verify", h.Verify)
}

// ============================================================================
// 请求类型
// ============================================================================

type createOrderRequest struct {
	EventID string `json:"eventId"`
}

type verifyRequest struct {
	OrderID          string                  `json:"razorpay_order_id"`
	PaymentID        string                  `json:"razorpay_payment_id"`
	Signature        string                  `json:"razorpay_signature"`
	EventID          string                  `json:"eventId"`
	RegistrationData *model.RegistrationData `json:"registrationData"`
}

// ============================================================================
// Handlers
// ============================================================================

// CreateOrder 为付费活动创建支付订单
//
// 下单前先做一轮存在性/重复/容量检查，尽早拒绝；
// 真正的并发安全由 Verify 阶段的原子报名保证。
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventID == "" {
		respond.Error(w, http.StatusBadRequest, "Event ID is required")
		return
	}

	event, err := h.store.GetEvent(r.Context(), req.EventID)
	if err != nil {
		log.Printf("[payment.order] GetEvent error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if event == nil {
		respond.Error(w, http.StatusNotFound, "Event not found")
		return
	}
	if event.IsRegistered(authUser.ID) {
		respond.Error(w, http.StatusBadRequest, "Already registered for this event")
		return
	}
	if event.IsFull() {
		respond.Error(w, http.StatusBadRequest, "Event is full")
		return
	}
	if event.Price <= 0 {
		respond.Error(w, http.StatusBadRequest, "This event is free, use the registration endpoint")
		return
	}

	// Razorpay 金额单位是 paise，四舍五入避免浮点截断（49.99 -> 4999）
	amount := int64(math.Round(event.Price * 100))
	receipt := fmt.Sprintf("evt_%d", time.Now().UnixMilli())
	notes := map[string]string{
		"eventId":    event.ID,
		"userId":     authUser.ID,
		"eventTitle": event.Title,
	}

	order, err := h.gateway.CreateOrder(amount, "INR", receipt, notes)
	if err != nil {
		log.Printf("[payment.order] gateway error: %v", err)
		metrics.PaymentsTotal.WithLabelValues("order_failed").Inc()
		respond.Error(w, http.StatusInternalServerError, "Failed to create payment order")
		return
	}

	metrics.PaymentsTotal.WithLabelValues("order_created").Inc()
	log.Printf("[payment] Order %s created for event %s by %s", order.ID, event.ID, authUser.ID)
	respond.OK(w, http.StatusOK, "Order created successfully", map[string]any{
		"orderId":    order.ID,
		"amount":     order.Amount,
		"currency":   order.Currency,
		"eventTitle": event.Title,
		"eventPrice": event.Price,
		"key":        h.keyID,
	})
}

// Verify 验证支付签名并完成报名
//
// 验签通过才算支付成功；之后走与免费报名相同的原子注册路径，
// 容量满或重复报名时支付已扣款的对账问题留给网关退款流程。
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" || req.EventID == "" {
		respond.Error(w, http.StatusBadRequest, "Missing required payment verification fields")
		return
	}

	if !VerifySignature(req.OrderID, req.PaymentID, req.Signature, h.keySecret) {
		metrics.PaymentsTotal.WithLabelValues("verify_failed").Inc()
		log.Printf("[payment] Signature verification failed for order %s (user %s)", req.OrderID, authUser.ID)
		respond.Error(w, http.StatusBadRequest, "Payment verification failed")
		return
	}

	// 验签通过后、写任何状态前再核对一遍前置条件，
	// 避免活动已满/已报名时档案被白改一通。最终裁决仍在原子报名。
	event, err := h.store.GetEvent(r.Context(), req.EventID)
	if err != nil {
		log.Printf("[payment.verify] GetEvent error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if event == nil {
		respond.Error(w, http.StatusNotFound, "Event not found")
		return
	}
	if event.IsRegistered(authUser.ID) {
		respond.Error(w, http.StatusBadRequest, "Already registered for this event")
		return
	}
	if event.IsFull() {
		respond.Error(w, http.StatusBadRequest, "Event is full")
		return
	}

	// 报名附加信息（电话、紧急联系人等）记录在用户档案上
	if req.RegistrationData != nil {
		fields := req.RegistrationData.ProfileFields()
		if len(fields) > 0 {
			if _, err := h.store.UpdateUserProfile(r.Context(), authUser.ID, fields); err != nil {
				log.Printf("[payment.verify] UpdateUserProfile error: %v", err)
				respond.Error(w, http.StatusInternalServerError, "Internal server error")
				return
			}
		}
	}

	if err := h.store.RegisterUser(r.Context(), req.EventID, authUser.ID); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			respond.Error(w, http.StatusNotFound, "Event not found")
		case errors.Is(err, storage.ErrAlreadyRegistered):
			respond.Error(w, http.StatusBadRequest, "Already registered for this event")
		case errors.Is(err, storage.ErrCapacityFull):
			respond.Error(w, http.StatusBadRequest, "Event is full")
		default:
			log.Printf("[payment.verify] RegisterUser error: %v", err)
			respond.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	metrics.PaymentsTotal.WithLabelValues("verified").Inc()
	metrics.RegistrationsTotal.WithLabelValues("paid").Inc()
	log.Printf("[payment] Payment %s verified, user %s registered for event %s",
		req.PaymentID, authUser.ID, req.EventID)
	respond.OK(w, http.StatusOK, "Payment verified and registration successful", map[string]any{
		"paymentId": req.PaymentID,
		"orderId":   req.OrderID,
	})
}
