package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskType string

const (
	TaskTypeTwitterConnect TaskType = "twitter_connect"
	TaskTypeWhatsAppVerify TaskType = "whatsapp_verify"
	TaskTypeTelegramJoin   TaskType = "telegram_join"
)

// TaskTypes lists every task in catalog order.
var TaskTypes = []TaskType{
	TaskTypeTwitterConnect,
	TaskTypeWhatsAppVerify,
	TaskTypeTelegramJoin,
}

type TaskStatus string

const (
	// TaskStatusNotStarted is never stored; it stands for a missing record.
	TaskStatusNotStarted TaskStatus = "not_started"
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusVerified   TaskStatus = "verified"
	TaskStatusRejected   TaskStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusVerified || s == TaskStatusRejected
}

// Rewarded reports whether the task reward has been credited.
func (s TaskStatus) Rewarded() bool {
	return s == TaskStatusCompleted || s == TaskStatusVerified
}

// UserTask is one user's attempt at a task type.
type UserTask struct {
	ID            string            `gorm:"primaryKey;size:36" json:"id"`
	UserEmail     string            `gorm:"not null;uniqueIndex:idx_user_task,priority:1" json:"user_email"`
	TaskType      TaskType          `gorm:"not null;uniqueIndex:idx_user_task,priority:2" json:"task_type"`
	Status        TaskStatus        `gorm:"not null;index" json:"status"`
	RewardTokens  int64             `gorm:"not null" json:"reward_tokens"`
	TaskData      map[string]string `gorm:"serializer:json" json:"task_data,omitempty"`
	CompletedDate *time.Time        `json:"completed_date,omitempty"`
	ReviewedBy    string            `json:"reviewed_by,omitempty"`

	Timestamps
}

func (UserTask) Collection() Collection { return CollectionTask }

func (t *UserTask) BeforeCreate(tx *gorm.DB) error {
	newID(&t.ID)
	return nil
}
