package model

import "time"

type Project struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"type:text;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description"`
	// Owner, immutable after creation.
	UserID int64 `gorm:"not null;index:ix_projects_user_id_updated_at,priority:1" json:"user_id"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;index:ix_projects_user_id_updated_at,priority:2" json:"updated_at"`

	// Project <-> User
	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// Project <-> Dataset
	Datasets []Dataset `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Project) TableName() string { return "projects" }
