package model

import "time"

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"type:text;not null" json:"name"`
	Email        string `gorm:"type:text;not null;uniqueIndex:uq_users_email" json:"email"`
	PasswordHash string `gorm:"type:text;not null" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;index:ix_users_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null" json:"updated_at"`

	// User <-> Project
	Projects []Project `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (User) TableName() string { return "users" }
