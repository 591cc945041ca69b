package model

import (
	"fmt"
	"strings"
	"time"
)

// EventCategory 活动分类
type EventCategory string

const (
	CategoryConference EventCategory = "conference"
	CategoryWorkshop   EventCategory = "workshop"
	CategorySeminar    EventCategory = "seminar"
	CategoryNetworking EventCategory = "networking"
	CategorySocial     EventCategory = "social"
	CategorySports     EventCategory = "sports"
	CategoryCultural   EventCategory = "cultural"
	CategoryOther      EventCategory = "other"
)

// EventCategories 所有合法分类
var EventCategories = []EventCategory{
	CategoryConference, CategoryWorkshop, CategorySeminar, CategoryNetworking,
	CategorySocial, CategorySports, CategoryCultural, CategoryOther,
}

// ValidEventCategory 检查分类是否合法
func ValidEventCategory(c string) bool {
	for _, cat := range EventCategories {
		if c == string(cat) {
			return true
		}
	}
	return false
}

// EventStatus 活动状态
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// ValidEventStatus 检查状态是否合法
func ValidEventStatus(s string) bool {
	switch EventStatus(s) {
	case EventStatusUpcoming, EventStatusOngoing, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// Event 活动
//
// RegisteredUsers 是集合语义（同一用户至多出现一次），长度不得超过 Capacity。
// 两条不变式都由存储层的原子条件更新保证，而非应用层读-改-写。
type Event struct {
	ID              string        `json:"id" bson:"_id"`
	Title           string        `json:"title" bson:"title"`
	Description     string        `json:"description" bson:"description"`
	Date            time.Time     `json:"date" bson:"date"`
	Time            string        `json:"time" bson:"time"`
	Location        string        `json:"location" bson:"location"`
	Category        EventCategory `json:"category" bson:"category"`
	Price           float64       `json:"price" bson:"price"`
	Capacity        int           `json:"capacity" bson:"capacity"`
	Image           string        `json:"image" bson:"image"`
	OrganizerID     string        `json:"organizer" bson:"organizer"`
	Status          EventStatus   `json:"status" bson:"status"`
	RegisteredUsers []string      `json:"registeredUsers" bson:"registered_users"`
	CreatedAt       time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" bson:"updated_at"`
}

// AvailableSeats 剩余席位（派生值，不落库）
func (e *Event) AvailableSeats() int {
	return e.Capacity - len(e.RegisteredUsers)
}

// IsRegistered 用户是否已报名
func (e *Event) IsRegistered(userID string) bool {
	for _, id := range e.RegisteredUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsFull 是否已满员
func (e *Event) IsFull() bool {
	return len(e.RegisteredUsers) >= e.Capacity
}

// EventInput 创建/更新活动的输入字段
// 更新时所有指针字段可为 nil（部分更新），创建时必填字段缺失视为校验失败。
type EventInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"` // ISO-8601 日期
	Time        *string  `json:"time"`
	Location    *string  `json:"location"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Capacity    *int     `json:"capacity"`
	Image       *string  `json:"image"`
	Status      *string  `json:"status"`
}

// dateLayouts 接受的日期格式
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseEventDate 解析活动日期
func ParseEventDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("please provide a valid date")
}

// Validate 校验输入字段
// required 为 true 时（创建），所有必填字段必须存在。
func (in *EventInput) Validate(required bool) error {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if len(t) < 3 || len(t) > 100 {
			return fmt.Errorf("title must be between 3 and 100 characters")
		}
	} else if required {
		return fmt.Errorf("title is required")
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if len(d) < 10 || len(d) > 1000 {
			return fmt.Errorf("description must be between 10 and 1000 characters")
		}
	} else if required {
		return fmt.Errorf("description is required")
	}
	if in.Date != nil {
		if _, err := ParseEventDate(*in.Date); err != nil {
			return err
		}
	} else if required {
		return fmt.Errorf("date is required")
	}
	if in.Time != nil {
		if strings.TrimSpace(*in.Time) == "" {
			return fmt.Errorf("time is required")
		}
	} else if required {
		return fmt.Errorf("time is required")
	}
	if in.Location != nil {
		if strings.TrimSpace(*in.Location) == "" {
			return fmt.Errorf("location is required")
		}
	} else if required {
		return fmt.Errorf("location is required")
	}
	if in.Category != nil {
		if !ValidEventCategory(*in.Category) {
			return fmt.Errorf("invalid category")
		}
	} else if required {
		return fmt.Errorf("category is required")
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return fmt.Errorf("price must be a positive number")
		}
	} else if required {
		return fmt.Errorf("price is required")
	}
	if in.Capacity != nil {
		if *in.Capacity < 1 {
			return fmt.Errorf("capacity must be at least 1")
		}
	} else if required {
		return fmt.Errorf("capacity is required")
	}
	if in.Status != nil && !ValidEventStatus(*in.Status) {
		return fmt.Errorf("invalid status")
	}
	return nil
}

// RegistrationData 报名信息（报名或支付验证通过后写回用户档案）
type RegistrationData struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	EmergencyContact    string `json:"emergencyContact"`
	SpecialRequirements string `json:"specialRequirements"`
}

// ProfileFields 转换为用户档案的部分更新字段，空值不覆盖已有数据
// email 不在结果中：邮箱是登录标识，不随报名信息变更
func (d *RegistrationData) ProfileFields() map[string]any {
	fields := map[string]any{}
	if d.Name != "" {
		fields["name"] = d.Name
	}
	if d.Phone != "" {
		fields["phone"] = d.Phone
	}
	if d.EmergencyContact != "" {
		fields["emergency_contact"] = d.EmergencyContact
	}
	if d.SpecialRequirements != "" {
		fields["special_requirements"] = d.SpecialRequirements
	}
	return fields
}
