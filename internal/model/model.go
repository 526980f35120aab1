package model

import (
	"time"
)

// ─────────────────────────────────────────────
// Job State Machine
//
//	RESERVED ─┬─> COMPLETED   (finalize)
//	PROCESSING┼─> EXPIRED     (reclaimer)
//	          └─> REFUNDED    (admin refund)
//
// Terminal states never transition again.
// ─────────────────────────────────────────────

type JobStatus string

const (
	JobStatusReserved   JobStatus = "RESERVED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusRefunded   JobStatus = "REFUNDED"
	JobStatusExpired    JobStatus = "EXPIRED"
)

// PendingStatuses are the states a settlement may transition out of.
var PendingStatuses = []JobStatus{JobStatusReserved, JobStatusProcessing}

// IsPending reports whether the job still holds reserved credits.
func (s JobStatus) IsPending() bool {
	return s == JobStatusReserved || s == JobStatusProcessing
}

// IsSettled reports whether finalize has nothing left to do
// and should replay the stored outcome.
func (s JobStatus) IsSettled() bool {
	return s == JobStatusCompleted || s == JobStatusRefunded
}

// ─────────────────────────────────────────────
// Core Domain Models
// ─────────────────────────────────────────────

// Job is one batch reservation. Rates are copied in at reservation time so
// settlement never depends on the live rate table.
type Job struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	JobToken        string     `json:"job_token" gorm:"uniqueIndex"`
	UserID          string     `json:"user_id" gorm:"index"`
	Status          JobStatus  `json:"status" gorm:"index:idx_job_status_expires,priority:1"`
	Mode            string     `json:"mode"`
	KeywordStyle    string     `json:"keyword_style,omitempty"`
	Model           string     `json:"model,omitempty"`
	AppVersion      string     `json:"app_version,omitempty"`
	FileCount       int        `json:"file_count"`
	PhotoCount      int        `json:"photo_count"`
	VideoCount      int        `json:"video_count"`
	PhotoRate       int        `json:"photo_rate"`
	VideoRate       int        `json:"video_rate"`
	ReservedCredits int64      `json:"reserved_credits"`
	ActualUsage     int64      `json:"actual_usage"`
	RefundAmount    int64      `json:"refund_amount"`
	SuccessCount    int        `json:"success_count"`
	FailedCount     int        `json:"failed_count"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at" gorm:"index:idx_job_status_expires,priority:2"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// ─────────────────────────────────────────────
// SQL Persistence Models (async write)
// ─────────────────────────────────────────────

// JobEventType names a step in a job's lifecycle trail.
type JobEventType string

const (
	JobEventReserved          JobEventType = "reserved"
	JobEventFinalized         JobEventType = "finalized"
	JobEventReplayed          JobEventType = "replayed"
	JobEventAntiCheatRejected JobEventType = "anti_cheat_rejected"
	JobEventExpired           JobEventType = "expired"
	JobEventAdminRefunded     JobEventType = "admin_refunded"
)

// JobEvent is an audit record. It is written off the request path and
// is never read back by the settlement logic.
type JobEvent struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	JobToken  string       `gorm:"index" json:"job_token"`
	UserID    string       `gorm:"index" json:"user_id"`
	Type      JobEventType `json:"type"`
	Success   int          `json:"success"`
	Failed    int          `json:"failed"`
	Credits   int64        `json:"credits"` // reserved, refunded or charged, depending on Type
	Detail    string       `json:"detail,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ─────────────────────────────────────────────
// HTTP Request / Response
// ─────────────────────────────────────────────

// ReserveRequest is the inbound reservation.
// UserID is NOT included here – it is extracted from the bearer token in the middleware.
type ReserveRequest struct {
	FileCount    int    `json:"file_count"`
	PhotoCount   *int   `json:"photo_count,omitempty"`
	VideoCount   *int   `json:"video_count,omitempty"`
	Mode         string `json:"mode"`
	KeywordStyle string `json:"keyword_style,omitempty"`
	Model        string `json:"model"`
	Version      string `json:"version"`
}

// Concurrency limits for the client's processing pipeline.
type Concurrency struct {
	Image int `json:"image"`
	Video int `json:"video"`
}

// ReserveResponse is returned on a successful reservation.
type ReserveResponse struct {
	JobToken        string      `json:"job_token"`
	ReservedCredits int64       `json:"reserved_credits"`
	PhotoRate       int         `json:"photo_rate"`
	VideoRate       int         `json:"video_rate"`
	Config          string      `json:"config"` // sealed prompt; empty if sealing failed
	Dictionary      []string    `json:"dictionary"`
	Blacklist       []string    `json:"blacklist"`
	Concurrency     Concurrency `json:"concurrency"`
	CacheThreshold  int         `json:"cache_threshold"`
	Balance         int64       `json:"balance"`
}

// FinalizeRequest reports the client-side outcome of a job. Photos/Videos
// are the reported mix of the processed files, used to apportion successes.
type FinalizeRequest struct {
	JobToken string `json:"job_token" binding:"required"`
	Success  int    `json:"success"`
	Failed   int    `json:"failed"`
	Photos   *int   `json:"photos,omitempty"`
	Videos   *int   `json:"videos,omitempty"`
}

// FinalizeResponse carries the settlement outcome.
type FinalizeResponse struct {
	Refunded int64 `json:"refunded"`
	Balance  int64 `json:"balance"`
}

// ReclaimResponse is returned by the expiry sweep.
type ReclaimResponse struct {
	Cleaned       int   `json:"cleaned"`
	TotalRefunded int64 `json:"total_refunded"`
}

// UserProfile represents a user with their balance.
// Used by the /admin/users/:id endpoint.
type UserProfile struct {
	User    interface{} `json:"user"` // *auth.User
	Credits int64       `json:"credits"`
}
