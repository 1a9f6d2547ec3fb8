package model

import "time"

type Dataset struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"type:text;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description"`
	ProjectID   int64   `gorm:"not null;index:ix_datasets_project_id" json:"project_id"`

	// Storage key of the uploaded object, e.g. projects/7/3f0c....csv
	FilePath    string `gorm:"type:text;not null;uniqueIndex:uq_datasets_file_path" json:"file_path"`
	FileType    string `gorm:"type:text;not null" json:"file_type"`
	SizeB       int64  `gorm:"not null;default:0" json:"size_b"`
	RowCount    int    `gorm:"not null;default:0" json:"row_count"`
	ColumnCount int    `gorm:"not null;default:0" json:"column_count"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null" json:"created_at"`

	// Dataset <-> Project
	Project *Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Dataset) TableName() string { return "datasets" }
