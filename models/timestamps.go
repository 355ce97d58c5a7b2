package models

import (
	"time"

	"github.com/google/uuid"
)

// Timestamps adds GORM auto-times. Records are never deleted, so there is no
// soft-delete column.
type Timestamps struct {
	CreatedDate time.Time `json:"created_date" gorm:"column:created_date;autoCreateTime;index"`
	UpdatedDate time.Time `json:"updated_date" gorm:"column:updated_date;autoUpdateTime"`
}

// Collection names the record sets exposed by the data store.
type Collection string

const (
	CollectionUser        Collection = "user"
	CollectionReferral    Collection = "referral"
	CollectionTransaction Collection = "transaction"
	CollectionTask        Collection = "task"
)

// Record is implemented by every entity the data store can create or list.
type Record interface {
	Collection() Collection
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
