package store

import (
	"fmt"
	"strings"
	"time"

	"bonkers-airdrop/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Query selects records of one collection. Filter is an equality map; Sort
// is a column name, prefixed with "-" for descending order.
//
// CreatedAfter is inclusive unless AfterID is set, in which case the pair
// is a keyset cursor: only rows strictly after (CreatedAfter, AfterID) in
// created_date, id order are returned.
type Query struct {
	Filter        map[string]any
	Sort          string
	Limit         int
	CreatedAfter  time.Time
	AfterID       string
	CreatedBefore time.Time
}

type collectionSchema struct {
	model     func() any
	filters   map[string]bool
	sorts     map[string]bool
	writable  map[string]bool
	immutable bool
}

var schemas = map[models.Collection]collectionSchema{
	models.CollectionUser: {
		model:   func() any { return &models.User{} },
		filters: set("id", "email", "referral_code", "wallet_connected", "initialized"),
		sorts:   set("created_date", "total_referrals", "total_earned", "airdrop_balance"),
	},
	models.CollectionReferral: {
		model:    func() any { return &models.Referral{} },
		filters:  set("id", "referrer_email", "referred_email", "status"),
		sorts:    set("created_date", "confirmed_at", "rewarded_at"),
		writable: set("status", "confirmed_at", "rewarded_at"),
	},
	models.CollectionTransaction: {
		model:     func() any { return &models.Transaction{} },
		filters:   set("id", "user_email", "transaction_type", "status", "idempotency_key"),
		sorts:     set("created_date"),
		immutable: true,
	},
	models.CollectionTask: {
		model:    func() any { return &models.UserTask{} },
		filters:  set("id", "user_email", "task_type", "status"),
		sorts:    set("created_date", "completed_date"),
		writable: set("status", "completed_date", "reviewed_by"),
	},
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func schemaFor(c models.Collection) (collectionSchema, error) {
	s, ok := schemas[c]
	if !ok {
		return collectionSchema{}, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return s, nil
}

// ParseSort splits "-created_date" into its column and direction.
func ParseSort(sort string) (column string, desc bool) {
	sort = strings.TrimSpace(sort)
	if strings.HasPrefix(sort, "-") {
		return strings.TrimPrefix(sort, "-"), true
	}
	return strings.TrimPrefix(sort, "+"), false
}

func (s collectionSchema) validate(q Query) error {
	for key := range q.Filter {
		if !s.filters[key] {
			return fmt.Errorf("%w: cannot filter on %q", ErrInvalidQuery, key)
		}
	}
	if q.Sort != "" {
		column, _ := ParseSort(q.Sort)
		if !s.sorts[column] {
			return fmt.Errorf("%w: cannot sort on %q", ErrInvalidQuery, column)
		}
	}
	if q.AfterID != "" && q.CreatedAfter.IsZero() {
		return fmt.Errorf("%w: AfterID needs CreatedAfter", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

func (q Query) limit() int {
	switch {
	case q.Limit == 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	}
	return q.Limit
}
