package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// 認証はホスト側。ここではロールだけ持つ
type UserRole struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_roles_user_role"`
	Role      Role      `gorm:"type:varchar(20);not null;uniqueIndex:idx_user_roles_user_role"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}
