package service

import "errors"

// Service layer errors. Handlers map them to status codes with errors.Is.
var (
	// Identity and access
	ErrUnresolvableIdentity = errors.New("unresolvable identity")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidToken         = errors.New("invalid token")

	// Users
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")

	// Projects
	ErrProjectNotFound     = errors.New("project not found")
	ErrProjectNameRequired = errors.New("project name is required")

	// Datasets
	ErrDatasetNotFound     = errors.New("dataset not found")
	ErrDatasetFileMissing  = errors.New("dataset file not found in storage")
	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file exceeds maximum upload size")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrMalformedFile       = errors.New("malformed file")

	// Jobs
	ErrJobNotFound         = errors.New("job not found")
	ErrJobTypeRequired     = errors.New("job type is required")
	ErrInvalidJobStatus    = errors.New("invalid job status")
	ErrInvalidTransition   = errors.New("invalid job status transition")
	ErrFailedWithoutError  = errors.New("failed job requires an error message")
	ErrCompletedWithError  = errors.New("completed job must not carry an error")
	ErrProcessingWithError = errors.New("processing job must not carry an error or result")
	ErrTransitionConflict  = errors.New("job status changed concurrently, retry")

	// ML
	ErrModelTypeRequired = errors.New("model_type is required")
	ErrTargetRequired    = errors.New("target is required")
	ErrModelIDRequired   = errors.New("model_id is required")

	// Feature flags
	ErrFeatureFlagNotFound = errors.New("feature flag not found")
	ErrFeatureFlagExists   = errors.New("feature flag already exists")
	ErrInvalidFlagName     = errors.New("invalid feature flag name")

	// Paging
	ErrInvalidCursor = errors.New("invalid cursor")
)
