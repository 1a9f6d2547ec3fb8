package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AuditActionUserRegister      = "user_register"
	AuditActionUserLogin         = "user_login"
	AuditActionProjectCreate     = "project_create"
	AuditActionProjectUpdate     = "project_update"
	AuditActionProjectDelete     = "project_delete"
	AuditActionDatasetUpload     = "dataset_upload"
	AuditActionDatasetDownload   = "dataset_download"
	AuditActionDatasetDelete     = "dataset_delete"
	AuditActionJobCreate         = "job_create"
	AuditActionJobUpdate         = "job_update"
	AuditActionFeatureFlagCreate = "feature_flag_create"
	AuditActionFeatureFlagUpdate = "feature_flag_update"
)

// AuditLog is append-only: rows are never updated or deleted.
type AuditLog struct {
	ID         int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *int64            `gorm:"index:ix_audit_logs_user_id_created_at,priority:1" json:"user_id"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	EntityType *string           `gorm:"type:text;index:ix_audit_logs_entity,priority:1" json:"entity_type"`
	EntityID   *string           `gorm:"type:text;index:ix_audit_logs_entity,priority:2" json:"entity_id"`
	Details    datatypes.JSONMap `swaggertype:"object" json:"details"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;index:ix_audit_logs_user_id_created_at,priority:2" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
