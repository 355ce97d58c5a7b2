package workers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
)

type memoryWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryWriter) Put(_ context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	m.types[key] = contentType
	return nil
}

func decodeLines(t *testing.T, body []byte) []models.Transaction {
	t.Helper()
	var out []models.Transaction
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var tx models.Transaction
		require.NoError(t, json.Unmarshal(sc.Bytes(), &tx))
		out = append(out, tx)
	}
	require.NoError(t, sc.Err())
	return out
}

func swapAt(email string, at time.Time) *models.Transaction {
	rate := decimal.RequireFromString("0.01")
	fee := decimal.NewFromInt(1)
	return &models.Transaction{
		UserEmail:       email,
		TransactionType: models.TransactionTypeSwap,
		FromCurrency:    models.CurrencyBONK,
		ToCurrency:      models.CurrencyUSDT,
		AmountFrom:      decimal.NewFromInt(1000),
		AmountTo:        decimal.NewFromInt(9),
		FeeAmount:       &fee,
		ExchangeRate:    &rate,
		Status:          models.TransactionStatusCompleted,
		Timestamps:      models.Timestamps{CreatedDate: at},
	}
}

func TestArchiveWritesOneDay(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	st, err := store.Open(sqlite.Open(dsn), store.Config{RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := st.DB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	ctx := context.Background()
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateRecord(ctx, swapAt("a@x.io", day.Add(-time.Second))))
	require.NoError(t, st.CreateRecord(ctx, swapAt("a@x.io", day)))
	require.NoError(t, st.CreateRecord(ctx, swapAt("b@x.io", day.Add(23*time.Hour))))
	require.NoError(t, st.CreateRecord(ctx, swapAt("b@x.io", day.Add(24*time.Hour))))

	w := newMemoryWriter()
	archiver := NewLedgerArchiver(st, w)
	archiver.Now = func() time.Time { return day.Add(24*time.Hour + 10*time.Minute) }

	count, err := archiver.ArchivePreviousDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	body, ok := w.objects["ledger/2024-03-09.jsonl"]
	require.True(t, ok)
	assert.Equal(t, "application/x-ndjson", w.types["ledger/2024-03-09.jsonl"])
	lines := decodeLines(t, body)
	require.Len(t, lines, 2)
	assert.Equal(t, "a@x.io", lines[0].UserEmail)
	assert.Equal(t, "b@x.io", lines[1].UserEmail)
	assert.True(t, lines[0].AmountTo.Equal(decimal.NewFromInt(9)))
}

// pagedLister serves transactions with the store's cursor rules.
type pagedLister struct {
	txs   []models.Transaction
	calls int
}

func (p *pagedLister) ListRecords(_ context.Context, _ models.Collection, q store.Query, out any) error {
	p.calls++
	var page []models.Transaction
	for _, tx := range p.txs {
		if tx.CreatedDate.Before(q.CreatedAfter) || !tx.CreatedDate.Before(q.CreatedBefore) {
			continue
		}
		if q.AfterID != "" && tx.CreatedDate.Equal(q.CreatedAfter) && tx.ID <= q.AfterID {
			continue
		}
		page = append(page, tx)
	}
	sort.SliceStable(page, func(i, j int) bool {
		if !page[i].CreatedDate.Equal(page[j].CreatedDate) {
			return page[i].CreatedDate.Before(page[j].CreatedDate)
		}
		return page[i].ID < page[j].ID
	})
	if len(page) > q.Limit {
		page = page[:q.Limit]
	}
	*out.(*[]models.Transaction) = page
	return nil
}

func TestArchivePagesWithoutDuplicates(t *testing.T) {
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	lister := &pagedLister{}
	total := store.MaxLimit + 120
	for i := 0; i < total; i++ {
		tx := swapAt("a@x.io", day.Add(time.Duration(i/3)*time.Second))
		tx.ID = fmt.Sprintf("%05d", i)
		lister.txs = append(lister.txs, *tx)
	}

	w := newMemoryWriter()
	count, err := NewLedgerArchiver(lister, w).Archive(context.Background(), day.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, total, count)
	assert.Equal(t, 2, lister.calls)

	lines := decodeLines(t, w.objects[ArchiveKey(day)])
	ids := map[string]bool{}
	for _, tx := range lines {
		ids[tx.ID] = true
	}
	assert.Len(t, ids, total)
}

func TestArchiveExportsRowsSharingOneTimestamp(t *testing.T) {
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	at := day.Add(8 * time.Hour)
	lister := &pagedLister{}
	total := 2*store.MaxLimit + 37
	for i := 0; i < total; i++ {
		tx := swapAt("a@x.io", at)
		tx.ID = fmt.Sprintf("%05d", i)
		lister.txs = append(lister.txs, *tx)
	}

	w := newMemoryWriter()
	count, err := NewLedgerArchiver(lister, w).Archive(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, total, count)
	assert.Equal(t, 3, lister.calls)

	lines := decodeLines(t, w.objects[ArchiveKey(day)])
	require.Len(t, lines, total)
	for i, tx := range lines {
		assert.Equal(t, fmt.Sprintf("%05d", i), tx.ID)
	}
}

type countingSettler struct {
	runs atomic.Int32
}

func (c *countingSettler) SettleConfirmed(context.Context) (int, error) {
	c.runs.Add(1)
	return 0, nil
}

type countingSweeper struct {
	runs atomic.Int32
}

func (c *countingSweeper) Sweep() int {
	c.runs.Add(1)
	return 0
}

func TestSchedulerRunsJobs(t *testing.T) {
	s, err := NewScheduler(context.Background())
	require.NoError(t, err)

	settler := &countingSettler{}
	sweeper := &countingSweeper{}
	require.NoError(t, s.AddReferralSettlement(settler, 20*time.Millisecond))
	require.NoError(t, s.AddLimiterSweep(sweeper, 20*time.Millisecond))
	require.NoError(t, s.AddLedgerArchive(NewLedgerArchiver(&pagedLister{}, newMemoryWriter())))
	assert.Len(t, s.sched.Jobs(), 3)

	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	assert.Eventually(t, func() bool {
		return settler.runs.Load() > 0 && sweeper.runs.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestArchiveKey(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 59, 0, 0, time.FixedZone("X", -5*3600))
	assert.Equal(t, "ledger/2025-01-01.jsonl", ArchiveKey(at))
}
