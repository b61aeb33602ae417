package models

import (
	"time"
)

type UserRole string

const (
	RoleMember    UserRole = "MEMBER"
	RoleModerator UserRole = "MODERATOR"
	RoleAdmin     UserRole = "ADMIN"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
	UserStatusDeleted   UserStatus = "DELETED"
)

type User struct {
	ID           uint64     `gorm:"primarykey" json:"id"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Role         UserRole   `gorm:"type:varchar(20);not null;default:'MEMBER'" json:"role"`
	Status       UserStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Profile     Profile      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	Requests    []Request    `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Assignments []Assignment `gorm:"foreignKey:PerformerID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsActive reports whether the user may authenticate and act.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
