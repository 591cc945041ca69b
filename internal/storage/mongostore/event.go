package mongostore

import (
	"context"
	"time"

	"eventhub/internal/model"
	"eventhub/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// EventStore
// ============================================================================

func (s *Store) CreateEvent(ctx context.Context, event *model.Event) error {
	return insertOne(ctx, s.col(ColEvents), event)
}

func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return findOne[model.Event](ctx, s.col(ColEvents), bson.D{{Key: "_id", Value: id}})
}

// ListEvents 按 date 升序分页
func (s *Store) ListEvents(ctx context.Context, f storage.EventFilter) ([]*model.Event, int64, error) {
	filter := bson.D{}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: f.Category})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	if f.Search != "" {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			regexFilter("title", f.Search),
			regexFilter("description", f.Search),
			regexFilter("location", f.Search),
		}})
	}
	sort := bson.D{{Key: "date", Value: 1}}
	return findPage[model.Event](ctx, s.col(ColEvents), filter, sort, f.Page, f.Limit)
}

// UpdateEvent 部分更新活动字段并返回更新后的文档
func (s *Store) UpdateEvent(ctx context.Context, id string, fields map[string]any) (*model.Event, error) {
	update := bson.D{{Key: "updated_at", Value: time.Now()}}
	for k, v := range fields {
		update = append(update, bson.E{Key: k, Value: v})
	}
	return findOneAndUpdate[model.Event](ctx, s.col(ColEvents), id, update)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColEvents), id)
}

// RegisterUser 原子追加报名
//
// 容量与去重不变式由单次条件更新保证：filter 同时要求
// "userID 不在 registered_users 中" 与 "len(registered_users) < capacity"，
// update 用 $addToSet 追加。两个并发请求不可能都在 capacity-1 处通过 filter，
// 因为 MongoDB 单文档更新是原子的。
//
// MatchedCount == 0 时再读一次文档区分三种失败原因。
// 该诊断读不参与不变式保证，仅用于返回准确的错误。
func (s *Store) RegisterUser(ctx context.Context, eventID, userID string) error {
	filter := bson.D{
		{Key: "_id", Value: eventID},
		{Key: "registered_users", Value: bson.D{{Key: "$ne", Value: userID}}},
		{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{
			bson.D{{Key: "$size", Value: "$registered_users"}},
			"$capacity",
		}}}},
	}
	update := bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "registered_users", Value: userID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
	}

	res, err := s.col(ColEvents).UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// 条件不满足：区分 not found / already registered / full
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return storage.ErrNotFound
	}
	if event.IsRegistered(userID) {
		return storage.ErrAlreadyRegistered
	}
	return storage.ErrCapacityFull
}

// UnregisterUser 原子移除报名
func (s *Store) UnregisterUser(ctx context.Context, eventID, userID string) error {
	filter := bson.D{
		{Key: "_id", Value: eventID},
		{Key: "registered_users", Value: userID},
	}
	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: "registered_users", Value: userID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
	}

	res, err := s.col(ColEvents).UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return storage.ErrNotFound
	}
	return storage.ErrNotRegistered
}

// ListEventsByOrganizer 组织者创建的活动，created_at 降序
func (s *Store) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Event](ctx, s.col(ColEvents), bson.D{{Key: "organizer", Value: organizerID}}, opts)
}

// ListEventsByRegistrant 用户已报名的活动，date 升序
func (s *Store) ListEventsByRegistrant(ctx context.Context, userID string) ([]*model.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	return findMany[model.Event](ctx, s.col(ColEvents), bson.D{{Key: "registered_users", Value: userID}}, opts)
}
