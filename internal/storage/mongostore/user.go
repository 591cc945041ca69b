package mongostore

import (
	"context"
	"time"

	"eventhub/internal/model"
	"eventhub/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return insertOne(ctx, s.col(ColUsers), user)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

// GetUserByEmailRole 按 {email, role} 组合查找
// 登录时 role 是查找键的一部分：角色不匹配与密码错误对调用方不可区分
func (s *Store) GetUserByEmailRole(ctx context.Context, email string, role model.UserRole) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{
		{Key: "email", Value: email},
		{Key: "role", Value: role},
	})
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	return findMany[model.User](ctx, s.col(ColUsers), filter)
}

// UpdateUserProfile 部分更新用户字段并返回更新后的文档
func (s *Store) UpdateUserProfile(ctx context.Context, id string, fields map[string]any) (*model.User, error) {
	update := bson.D{{Key: "updated_at", Value: time.Now()}}
	for k, v := range fields {
		update = append(update, bson.E{Key: k, Value: v})
	}
	return findOneAndUpdate[model.User](ctx, s.col(ColUsers), id, update)
}

// ListUsers 管理员分页查询，按 created_at 降序
func (s *Store) ListUsers(ctx context.Context, f storage.UserFilter) ([]*model.User, int64, error) {
	filter := bson.D{}
	if f.Search != "" {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			regexFilter("name", f.Search),
			regexFilter("email", f.Search),
		}})
	}
	sort := bson.D{{Key: "created_at", Value: -1}}
	return findPage[model.User](ctx, s.col(ColUsers), filter, sort, f.Page, f.Limit)
}
