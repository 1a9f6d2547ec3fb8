package model

import "time"

type FeatureFlag struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"type:text;not null;uniqueIndex:uq_feature_flags_name" json:"name"`
	Description *string `gorm:"type:text" json:"description"`
	Enabled     bool    `gorm:"not null;default:false" json:"enabled"`

	// Set when Enabled comes from environment configuration instead of the store.
	Overridden bool `gorm:"-" json:"overridden"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null" json:"updated_at"`
}

func (FeatureFlag) TableName() string { return "feature_flags" }
