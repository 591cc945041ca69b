// Package event 活动管理 HTTP 处理器
//
// 包含活动 CRUD、报名/取消报名、组织者视图、管理员用户列表。
// 活动归属权校验（组织者或管理员）在本层完成，认证在中间件完成。
package event

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eventhub/internal/apiserver/auth"
	"eventhub/internal/apiserver/respond"
	"eventhub/internal/metrics"
	"eventhub/internal/model"
	"eventhub/internal/storage"
)

// Handler 活动 HTTP 处理器
type Handler struct {
	store storage.Store
}

// NewHandler 创建活动处理器
func NewHandler(store storage.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册活动相关路由
//
// 注意顺序无关：Go 1.22 ServeMux 按最具体模式匹配，
// /api/events/user/my-events 优先于 /api/events/{id}。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/events", h.List)
	mux.HandleFunc("POST /api/events", h.Create)
	mux.HandleFunc("GET /api/events/{id}", h.Get)
	mux.HandleFunc("PUT /api/events/{id}", h.Update)
	mux.HandleFunc("DELETE /api/events/{id}", h.Delete)
	mux.HandleFunc("POST /api/events/{id}/register", h.Register)
	mux.HandleFunc("DELETE /api/events/{id}/register", h.Unregister)
	mux.HandleFunc("GET /api/events/{id}/registered-users", h.RegisteredUsers)
	mux.HandleFunc("GET /api/events/user/my-events", h.MyEvents)
	mux.HandleFunc("GET /api/events/user/registered", h.RegisteredEvents)
	mux.HandleFunc("GET /api/events/admin/users", auth.AdminOnly(h.AdminUsers))
}

// ============================================================================
// 响应视图
// ============================================================================

// organizerView 组织者的部分投影
type organizerView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// eventView 活动响应视图
// AvailableSeats 是派生字段，序列化时计算
type eventView struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Date            time.Time           `json:"date"`
	Time            string              `json:"time"`
	Location        string              `json:"location"`
	Category        model.EventCategory `json:"category"`
	Price           float64             `json:"price"`
	Capacity        int                 `json:"capacity"`
	Image           string              `json:"image"`
	Status          model.EventStatus   `json:"status"`
	Organizer       any                 `json:"organizer"`
	RegisteredUsers any                 `json:"registeredUsers"`
	AvailableSeats  int                 `json:"availableSeats"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// newEventView 构建活动视图
// organizer 为 nil 时组织者字段退化为原始 id；
// registrants 为 nil 时 registeredUsers 保持 id 数组。
func newEventView(e *model.Event, organizer *model.User, registrants []*model.User) eventView {
	v := eventView{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Date:            e.Date,
		Time:            e.Time,
		Location:        e.Location,
		Category:        e.Category,
		Price:           e.Price,
		Capacity:        e.Capacity,
		Image:           e.Image,
		Status:          e.Status,
		Organizer:       e.OrganizerID,
		RegisteredUsers: e.RegisteredUsers,
		AvailableSeats:  e.AvailableSeats(),
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if organizer != nil {
		v.Organizer = organizerView{
			ID:     organizer.ID,
			Name:   organizer.Name,
			Email:  organizer.Email,
			Avatar: organizer.Avatar,
		}
	}
	if registrants != nil {
		views := make([]organizerView, 0, len(registrants))
		for _, u := range registrants {
			views = append(views, organizerView{ID: u.ID, Name: u.Name, Email: u.Email})
		}
		v.RegisteredUsers = views
	}
	return v
}

// expandOrganizers 批量展开一组活动的组织者投影
func (h *Handler) expandOrganizers(ctx context.Context, events []*model.Event) ([]eventView, error) {
	idSet := map[string]bool{}
	ids := []string{}
	for _, e := range events {
		if !idSet[e.OrganizerID] {
			idSet[e.OrganizerID] = true
			ids = append(ids, e.OrganizerID)
		}
	}

	users, err := h.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := map[string]*model.User{}
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, newEventView(e, byID[e.OrganizerID], nil))
	}
	return views, nil
}

// ============================================================================
// CRUD
// ============================================================================

// Create 创建活动，创建者成为组织者
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())

	var in model.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.Validate(true); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	date, _ := model.ParseEventDate(*in.Date)
	now := time.Now()
	event := &model.Event{
		ID:              newEventID(),
		Title:           strings.TrimSpace(*in.Title),
		Description:     strings.TrimSpace(*in.Description),
		Date:            date,
		Time:            *in.Time,
		Location:        strings.TrimSpace(*in.Location),
		Category:        model.EventCategory(*in.Category),
		Price:           *in.Price,
		Capacity:        *in.Capacity,
		OrganizerID:     authUser.ID,
		Status:          model.EventStatusUpcoming,
		RegisteredUsers: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Image != nil {
		event.Image = *in.Image
	}
	if in.Status != nil {
		event.Status = model.EventStatus(*in.Status)
	}

	if err := h.store.CreateEvent(r.Context(), event); err != nil {
		log.Printf("[event.create] CreateEvent error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	organizer, err := h.store.GetUserByID(r.Context(), authUser.ID)
	if err != nil || organizer == nil {
		log.Printf("[event.create] expand organizer error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("[event] Event created: %s (%s) by %s", event.Title, event.ID, authUser.ID)
	respond.OK(w, http.StatusCreated, "Event created successfully", map[string]any{
		"event": newEventView(event, organizer, nil),
	})
}

// List 活动列表
// 支持 category/status 过滤与 title/description/location 模糊搜索，按 date 升序分页
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.EventFilter{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
		Page:     queryInt(q.Get("page"), 1),
		Limit:    queryInt(q.Get("limit"), 10),
	}

	events, total, err := h.store.ListEvents(r.Context(), f)
	if err != nil {
		log.Printf("[event.list] ListEvents error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	views, err := h.expandOrganizers(r.Context(), events)
	if err != nil {
		log.Printf("[event.list] expand organizers error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.Page(w, http.StatusOK, "Events retrieved successfully",
		map[string]any{"events": views},
		respond.NewPagination(f.Page, f.Limit, total))
}

// Get 活动详情，组织者与报名者都展开为部分投影
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[event.get] GetEvent error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if event == nil {
		respond.Error(w, http.StatusNotFound, "Event not found")
		return
	}

	organizer, err := h.store.GetUserByID(r.Context(), event.OrganizerID)
	if err != nil {
		log.Printf("[event.get] expand organizer error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	registrants, err := h.store.GetUsersByIDs(r.Context(), event.RegisteredUsers)
	if err != nil {
		log.Printf("[event.get] expand registrants error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.OK(w, http.StatusOK, "Event retrieved successfully", map[string]any{
		"event": newEventView(event, organizer, registrants),
	})
}

// Update 更新活动（组织者或管理员）
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())
	id := r.PathValue("id")

	event, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		log.Printf("[event.update] GetEvent error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if event == nil {
		respond.Error(w, http.StatusNotFound, "Event not found")
		return
	}
	if event.OrganizerID != authUser.ID && authUser.Role != string(model.UserRoleAdmin) {
		respond.Error(w, http.StatusForbidden, "Not authorized to update this event")
		return
	}

	var in model.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.Validate(false); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := updateFields(&in)
	updated, err := h.store.UpdateEvent(r.Context(), id, fields)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "Event not found")
			return
		}
		log.Printf("[event.update] UpdateEvent error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	organizer, err := h.store.GetUserByID(r.Context(), updated.OrganizerID)
	if err != nil {
		log.Printf("[event.update] expand organizer error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.OK(w, http.StatusOK, "Event updated successfully", map[string]any{
		"event": newEventView(updated, organizer, nil),
	})
}

// Delete 删除活动（组织者或管理员）
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())
	id := r.PathValue("id")

	event, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		log.Printf("[event.delete] GetEvent error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if event == nil {
		respond.Error(w, http.StatusNotFound, "Event not found")
		return
	}
	if event.OrganizerID != authUser.ID && authUser.Role != string(model.UserRoleAdmin) {
		respond.Error(w, http.StatusForbidden, "Not authorized to delete this event")
		return
	}

	if err := h.store.DeleteEvent(r.Context(), id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[event.delete] DeleteEvent error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("[event] Event deleted: %s by %s", id, authUser.ID)
	respond.OK(w, http.StatusOK, "Event deleted successfully", nil)
}

// ============================================================================
// 报名
// ============================================================================

// registerRequest 免费报名的可选请求体
type registerRequest struct {
	RegistrationData *model.RegistrationData `json:"registrationData"`
}

// Register 免费报名
// 容量与去重检查由存储层的原子条件更新完成
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())
	id := r.PathValue("id")

	// 请求体可选，解析失败按无附加信息处理
	var req registerRequest
	json.NewDecoder(r.Body).Decode(&req)

	if req.RegistrationData != nil {
		fields := req.RegistrationData.ProfileFields()
		if len(fields) > 0 {
			// 写档案前先核对前置条件，报名注定失败时不动用户数据。
			// 最终裁决仍在下面的原子报名。
			event, err := h.store.GetEvent(r.Context(), id)
			if err != nil {
				log.Printf("[event.register] GetEvent error: %v", err)
				respond.Error(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			switch {
			case event == nil:
				writeRegisterError(w, storage.ErrNotFound)
				return
			case event.IsRegistered(authUser.ID):
				writeRegisterError(w, storage.ErrAlreadyRegistered)
				return
			case event.IsFull():
				writeRegisterError(w, storage.ErrCapacityFull)
				return
			}
			if _, err := h.store.UpdateUserProfile(r.Context(), authUser.ID, fields); err != nil {
				log.Printf("[event.register] UpdateUserProfile error: %v", err)
				respond.Error(w, http.StatusInternalServerError, "Internal server error")
				return
			}
		}
	}

	if err := h.store.RegisterUser(r.Context(), id, authUser.ID); err != nil {
		writeRegisterError(w, err)
		return
	}

	metrics.RegistrationsTotal.WithLabelValues("free").Inc()
	log.Printf("[event] User %s registered for event %s", authUser.ID, id)
	respond.OK(w, http.StatusOK, "Successfully registered for event", nil)
}

// Unregister 取消报名
func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())
	id := r.PathValue("id")

	if err := h.store.UnregisterUser(r.Context(), id, authUser.ID); err != nil {
		writeRegisterError(w, err)
		return
	}

	metrics.RegistrationsTotal.WithLabelValues("cancelled").Inc()
	log.Printf("[event] User %s unregistered from event %s", authUser.ID, id)
	respond.OK(w, http.StatusOK, "Successfully unregistered from event", nil)
}

// writeRegisterError 报名域错误到 HTTP 的映射
func writeRegisterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "Event not found")
	case errors.Is(err, storage.ErrAlreadyRegistered):
		respond.Error(w, http.StatusBadRequest, "Already registered for this event")
	case errors.Is(err, storage.ErrCapacityFull):
		respond.Error(w, http.StatusBadRequest, "Event is full")
	case errors.Is(err, storage.ErrNotRegistered):
		respond.Error(w, http.StatusBadRequest, "Not registered for this event")
	default:
		log.Printf("[event.register] store error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ============================================================================
// 视图查询
// ============================================================================

// MyEvents 当前用户创建的活动，最新在前
func (h *Handler) MyEvents(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())

	events, err := h.store.ListEventsByOrganizer(r.Context(), authUser.ID)
	if err != nil {
		log.Printf("[event.mine] ListEventsByOrganizer error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	views, err := h.expandOrganizers(r.Context(), events)
	if err != nil {
		log.Printf("[event.mine] expand organizers error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.OK(w, http.StatusOK, "My events retrieved successfully", map[string]any{
		"events": views,
	})
}

// RegisteredEvents 当前用户已报名的活动，按日期升序
func (h *Handler) RegisteredEvents(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())

	events, err := h.store.ListEventsByRegistrant(r.Context(), authUser.ID)
	if err != nil {
		log.Printf("[event.registered] ListEventsByRegistrant error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	views, err := h.expandOrganizers(r.Context(), events)
	if err != nil {
		log.Printf("[event.registered] expand organizers error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.OK(w, http.StatusOK, "Registered events retrieved successfully", map[string]any{
		"events": views,
	})
}

// RegisteredUsers 报名名单（组织者/管理员视图）
func (h *Handler) RegisteredUsers(w http.ResponseWriter, r *http.Request) {
	event, err := h.store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[event.registrants] GetEvent error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if event == nil {
		respond.Error(w, http.StatusNotFound, "Event not found")
		return
	}

	users, err := h.store.GetUsersByIDs(r.Context(), event.RegisteredUsers)
	if err != nil {
		log.Printf("[event.registrants] GetUsersByIDs error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	registrants := make([]model.RegistrantView, 0, len(users))
	for _, u := range users {
		registrants = append(registrants, u.Registrant())
	}

	respond.OK(w, http.StatusOK, "Event registered users retrieved successfully", map[string]any{
		"event": map[string]any{
			"id":              event.ID,
			"title":           event.Title,
			"capacity":        event.Capacity,
			"registeredCount": len(event.RegisteredUsers),
			"users":           registrants,
		},
	})
}

// AdminUsers 管理员分页用户列表（路由层已做 AdminOnly 校验）
func (h *Handler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.UserFilter{
		Search: q.Get("search"),
		Page:   queryInt(q.Get("page"), 1),
		Limit:  queryInt(q.Get("limit"), 10),
	}

	users, total, err := h.store.ListUsers(r.Context(), f)
	if err != nil {
		log.Printf("[event.admin] ListUsers error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	publics := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		publics = append(publics, u.Public())
	}

	respond.Page(w, http.StatusOK, "Users retrieved successfully",
		map[string]any{"users": publics},
		respond.NewPagination(f.Page, f.Limit, total))
}

// ============================================================================
// 工具函数
// ============================================================================

// updateFields 由部分更新输入构建存储层字段映射
func updateFields(in *model.EventInput) map[string]any {
	fields := map[string]any{}
	if in.Title != nil {
		fields["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		fields["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Date != nil {
		date, _ := model.ParseEventDate(*in.Date)
		fields["date"] = date
	}
	if in.Time != nil {
		fields["time"] = *in.Time
	}
	if in.Location != nil {
		fields["location"] = strings.TrimSpace(*in.Location)
	}
	if in.Category != nil {
		fields["category"] = *in.Category
	}
	if in.Price != nil {
		fields["price"] = *in.Price
	}
	if in.Capacity != nil {
		fields["capacity"] = *in.Capacity
	}
	if in.Image != nil {
		fields["image"] = *in.Image
	}
	if in.Status != nil {
		fields["status"] = *in.Status
	}
	return fields
}

// queryInt 解析查询参数为正整数，非法时回退默认值
func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// newEventID 生成活动 ID，格式 evt-xxxxxxxxxxxx
func newEventID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "evt-" + hex.EncodeToString(b)
}
