// Package storage 定义持久化存储层抽象接口与领域错误
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方（HTTP handler）只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/
//   - 测试使用内存 mock 实现
//
// 领域错误用于隔离业务层与底层存储引擎的错误类型，
// 驱动实现负责将底层错误（mongo.ErrNoDocuments、唯一索引冲突）转换为这些错误。
package storage

import (
	"context"
	"errors"

	"eventhub/internal/model"
)

var (
	// ErrNotFound 实体不存在
	// 替代 mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate 唯一键冲突（邮箱唯一索引）
	ErrDuplicate = errors.New("duplicate: entity already exists")

	// ErrAlreadyRegistered 用户已报名该活动
	ErrAlreadyRegistered = errors.New("already registered for this event")

	// ErrNotRegistered 用户未报名该活动
	ErrNotRegistered = errors.New("not registered for this event")

	// ErrCapacityFull 活动已满员
	ErrCapacityFull = errors.New("event is full")
)

// UserFilter 用户分页查询条件
type UserFilter struct {
	Search string // 按 name/email 不区分大小写子串匹配
	Page   int
	Limit  int
}

// EventFilter 活动分页查询条件
type EventFilter struct {
	Category string
	Status   string
	Search   string // 按 title/description/location 不区分大小写子串匹配（逻辑 OR）
	Page     int
	Limit    int
}

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// GetUserByEmailRole 按 {email, role} 组合查找，登录时 role 是查找键的一部分
	GetUserByEmailRole(ctx context.Context, email string, role model.UserRole) (*model.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	// UpdateUserProfile 部分更新：fields 中只包含要更新的列
	UpdateUserProfile(ctx context.Context, id string, fields map[string]any) (*model.User, error)
	// ListUsers 管理员分页查询，按 created_at 降序
	ListUsers(ctx context.Context, f UserFilter) ([]*model.User, int64, error)
}

// EventStore 活动存储接口
//
// RegisterUser / UnregisterUser 必须是原子条件更新（单次文档操作），
// 以在并发报名竞争容量边界时维持 len(registered_users) <= capacity
// 与无重复报名两条不变式。
type EventStore interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// ListEvents 按 date 升序分页，返回总数用于分页元数据
	ListEvents(ctx context.Context, f EventFilter) ([]*model.Event, int64, error)
	// UpdateEvent 部分更新，返回更新后的文档
	UpdateEvent(ctx context.Context, id string, fields map[string]any) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	// RegisterUser 原子追加报名：未报名且未满员时一次更新完成，
	// 否则返回 ErrNotFound / ErrAlreadyRegistered / ErrCapacityFull
	RegisterUser(ctx context.Context, eventID, userID string) error
	// UnregisterUser 原子移除报名，未报名时返回 ErrNotRegistered
	UnregisterUser(ctx context.Context, eventID, userID string) error
	// ListEventsByOrganizer 组织者创建的活动，created_at 降序
	ListEventsByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error)
	// ListEventsByRegistrant 用户已报名的活动，date 升序
	ListEventsByRegistrant(ctx context.Context, userID string) ([]*model.Event, error)
}

// Store 聚合存储接口
type Store interface {
	UserStore
	EventStore
	Close() error
}
