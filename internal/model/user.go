// Package model 定义核心数据模型
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// ValidUserRole 检查角色是否合法
func ValidUserRole(r string) bool {
	return r == string(UserRoleAdmin) || r == string(UserRoleUser)
}

// User 用户
//
// PasswordHash 永远不会出现在 JSON 序列化结果中。
// Phone / EmergencyContact / SpecialRequirements 在活动报名时写入（报名信息补全）。
type User struct {
	ID                  string    `json:"id" bson:"_id"`
	Name                string    `json:"name" bson:"name"`
	Email               string    `json:"email" bson:"email"`
	PasswordHash        string    `json:"-" bson:"password_hash"` // never expose in JSON
	Role                UserRole  `json:"role" bson:"role"`
	Avatar              string    `json:"avatar" bson:"avatar"`
	Phone               string    `json:"phone,omitempty" bson:"phone"`
	EmergencyContact    string    `json:"emergencyContact,omitempty" bson:"emergency_contact"`
	SpecialRequirements string    `json:"specialRequirements,omitempty" bson:"special_requirements"`
	CreatedAt           time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt           time.Time `json:"updatedAt" bson:"updated_at"`
}

// PublicUser 用户公开投影（API 响应中使用）
type PublicUser struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	Avatar string   `json:"avatar"`
}

// Public 返回用户的公开投影
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Avatar: u.Avatar,
	}
}

// RegistrantView 报名者视图（组织者/管理员查看报名名单时使用）
type RegistrantView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registrant 返回报名者视图
func (u *User) Registrant() RegistrantView {
	return RegistrantView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail 检查邮箱格式
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidateSignup 校验注册字段
// name 2-50 字符，email 格式合法，password 至少 6 字符，role 为 user/admin
func ValidateSignup(name, email, password, role string) error {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 50 {
		return fmt.Errorf("name must be between 2 and 50 characters")
	}
	if !ValidEmail(email) {
		return fmt.Errorf("please provide a valid email")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters long")
	}
	if role != "" && !ValidUserRole(role) {
		return fmt.Errorf("role must be either admin or user")
	}
	return nil
}
