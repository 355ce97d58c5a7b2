package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
	"bonkers-airdrop/utils"
)

// RecordLister is the read side of the data store the archiver needs.
type RecordLister interface {
	ListRecords(ctx context.Context, collection models.Collection, q store.Query, out any) error
}

// LedgerArchiver exports one UTC day of transactions as JSON lines to
// ledger/YYYY-MM-DD.jsonl.
type LedgerArchiver struct {
	Store  RecordLister
	Writer utils.ObjectWriter
	Now    func() time.Time
}

func NewLedgerArchiver(st RecordLister, w utils.ObjectWriter) *LedgerArchiver {
	return &LedgerArchiver{Store: st, Writer: w, Now: time.Now}
}

func ArchiveKey(day time.Time) string {
	return "ledger/" + day.UTC().Format("2006-01-02") + ".jsonl"
}

// ArchivePreviousDay exports the day before now.
func (a *LedgerArchiver) ArchivePreviousDay(ctx context.Context) (int, error) {
	return a.Archive(ctx, a.Now().UTC().AddDate(0, 0, -1))
}

// Archive writes every transaction created on day's UTC date. Re-running a
// day overwrites the same object.
func (a *LedgerArchiver) Archive(ctx context.Context, day time.Time) (int, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	q := store.Query{
		Sort:          "created_date",
		Limit:         store.MaxLimit,
		CreatedAfter:  start,
		CreatedBefore: end,
	}
	count := 0

	for {
		var page []models.Transaction
		if err := a.Store.ListRecords(ctx, models.CollectionTransaction, q, &page); err != nil {
			return count, fmt.Errorf("list transactions for %s: %w", start.Format("2006-01-02"), err)
		}
		for i := range page {
			if err := enc.Encode(&page[i]); err != nil {
				return count, err
			}
		}
		count += len(page)

		if len(page) < store.MaxLimit {
			break
		}
		last := page[len(page)-1]
		q.CreatedAfter, q.AfterID = last.CreatedDate, last.ID
	}

	key := ArchiveKey(start)
	if err := a.Writer.Put(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		return count, err
	}
	log.Printf("📦 Archived %d ledger entries to %s", count, key)
	return count, nil
}
