package model

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

const (
	JobTypeProcessDataset = "process_dataset"
	JobTypeTrainModel     = "train_model"
	JobTypePredict        = "predict"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal forward step from s:
// pending -> processing -> {completed, failed}.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	}
	return false
}

type Job struct {
	ID     string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Type   string         `gorm:"type:text;not null;index:ix_jobs_type" json:"type"`
	Data   datatypes.JSON `swaggertype:"object" json:"data,omitempty"`
	Status JobStatus      `gorm:"type:varchar(16);not null;default:'pending';check:chk_jobs_status,status IN ('pending','processing','completed','failed');index:ix_jobs_status_created_at,priority:1" json:"status"`
	Result datatypes.JSON `swaggertype:"object" json:"result,omitempty"`
	Error  *string        `gorm:"type:text" json:"error,omitempty"`

	// Acting user that requested the job, if any.
	CreatedBy *int64 `gorm:"index:ix_jobs_created_by" json:"created_by,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;index:ix_jobs_status_created_at,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null" json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }
