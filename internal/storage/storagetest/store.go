// Package storagetest 提供 storage.Store 的内存实现，供各 handler 包的测试使用
//
// 语义与 mongostore 对齐：邮箱唯一、报名是带容量条件的原子操作、
// 查不到返回 (nil, nil)。互斥锁保证并发测试下与单文档原子更新等价。
package storagetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"eventhub/internal/model"
	"eventhub/internal/storage"
)

// Store 内存存储
type Store struct {
	mu     sync.Mutex
	users  map[string]*model.User
	events map[string]*model.Event
}

// New 创建空的内存存储
func New() *Store {
	return &Store{
		users:  map[string]*model.User{},
		events: map[string]*model.Event{},
	}
}

// Close 实现 storage.Store
func (s *Store) Close() error { return nil }

// 编译期接口断言
var _ storage.Store = (*Store)(nil)

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func cloneEvent(e *model.Event) *model.Event {
	c := *e
	c.RegisteredUsers = append([]string{}, e.RegisteredUsers...)
	return &c
}

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return storage.ErrDuplicate
		}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByEmailRole(ctx context.Context, email string, role model.UserRole) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && u.Role == role {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []*model.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result = append(result, cloneUser(u))
		}
	}
	return result, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id string, fields map[string]any) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	for k, v := range fields {
		str, _ := v.(string)
		switch k {
		case "name":
			u.Name = str
		case "avatar":
			u.Avatar = str
		case "phone":
			u.Phone = str
		case "emergency_contact":
			u.EmergencyContact = str
		case "special_requirements":
			u.SpecialRequirements = str
		}
	}
	u.UpdatedAt = time.Now()
	return cloneUser(u), nil
}

func (s *Store) ListUsers(ctx context.Context, f storage.UserFilter) ([]*model.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []*model.User{}
	for _, u := range s.users {
		if f.Search != "" &&
			!containsFold(u.Name, f.Search) && !containsFold(u.Email, f.Search) {
			continue
		}
		matched = append(matched, cloneUser(u))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	return paginate(matched, f.Page, f.Limit), total, nil
}

// ============================================================================
// EventStore
// ============================================================================

func (s *Store) CreateEvent(ctx context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = cloneEvent(event)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		return cloneEvent(e), nil
	}
	return nil, nil
}

func (s *Store) ListEvents(ctx context.Context, f storage.EventFilter) ([]*model.Event, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []*model.Event{}
	for _, e := range s.events {
		if f.Category != "" && string(e.Category) != f.Category {
			continue
		}
		if f.Status != "" && string(e.Status) != f.Status {
			continue
		}
		if f.Search != "" &&
			!containsFold(e.Title, f.Search) &&
			!containsFold(e.Description, f.Search) &&
			!containsFold(e.Location, f.Search) {
			continue
		}
		matched = append(matched, cloneEvent(e))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Date.Before(matched[j].Date)
	})
	total := int64(len(matched))
	return paginate(matched, f.Page, f.Limit), total, nil
}

func (s *Store) UpdateEvent(ctx context.Context, id string, fields map[string]any) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			e.Title = v.(string)
		case "description":
			e.Description = v.(string)
		case "date":
			e.Date = v.(time.Time)
		case "time":
			e.Time = v.(string)
		case "location":
			e.Location = v.(string)
		case "category":
			e.Category = model.EventCategory(v.(string))
		case "price":
			e.Price = v.(float64)
		case "capacity":
			e.Capacity = v.(int)
		case "image":
			e.Image = v.(string)
		case "status":
			e.Status = model.EventStatus(v.(string))
		}
	}
	e.UpdatedAt = time.Now()
	return cloneEvent(e), nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *Store) RegisterUser(ctx context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return storage.ErrNotFound
	}
	if e.IsRegistered(userID) {
		return storage.ErrAlreadyRegistered
	}
	if e.IsFull() {
		return storage.ErrCapacityFull
	}
	e.RegisteredUsers = append(e.RegisteredUsers, userID)
	e.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UnregisterUser(ctx context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return storage.ErrNotFound
	}
	for i, id := range e.RegisteredUsers {
		if id == userID {
			e.RegisteredUsers = append(e.RegisteredUsers[:i], e.RegisteredUsers[i+1:]...)
			e.UpdatedAt = time.Now()
			return nil
		}
	}
	return storage.ErrNotRegistered
}

func (s *Store) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []*model.Event{}
	for _, e := range s.events {
		if e.OrganizerID == organizerID {
			matched = append(matched, cloneEvent(e))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

func (s *Store) ListEventsByRegistrant(ctx context.Context, userID string) ([]*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []*model.Event{}
	for _, e := range s.events {
		if e.IsRegistered(userID) {
			matched = append(matched, cloneEvent(e))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Date.Before(matched[j].Date)
	})
	return matched, nil
}

// ============================================================================
// 工具函数
// ============================================================================

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
