package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/models"
)

// MutateFunc validates against a fresh user snapshot and applies changes to
// it. Records created or updated through tx commit atomically with the user.
type MutateFunc func(user *models.User, tx Tx) error

// DataStore is the persistence collaborator of the economy services.
type DataStore interface {
	GetCurrentUser(ctx context.Context) (*models.User, error)
	UpdateUser(ctx context.Context, fields map[string]any) (*models.User, error)
	CreateRecord(ctx context.Context, rec models.Record) error
	FindRecord(ctx context.Context, collection models.Collection, filter map[string]any, out models.Record) error
	ListRecords(ctx context.Context, collection models.Collection, q Query, out any) error
	UpdateRecord(ctx context.Context, collection models.Collection, id string, fields map[string]any) error
	MutateUser(ctx context.Context, email string, fn MutateFunc) (*models.User, error)
}

// Config tunes timeouts and retries.
type Config struct {
	Timeout              time.Duration
	ReadRetries          int
	WriteConflictRetries int
	RetryBackoff         time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:              5 * time.Second,
		ReadRetries:          3,
		WriteConflictRetries: 3,
		RetryBackoff:         50 * time.Millisecond,
	}
}

// GormStore implements DataStore on gorm.
type GormStore struct {
	DB  *gorm.DB
	cfg Config
}

// Open connects through dialector and migrates the schema.
func Open(dialector gorm.Dialector, cfg Config) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return New(db, cfg), nil
}

// New wraps an already opened database.
func New(db *gorm.DB, cfg Config) *GormStore {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ReadRetries < 0 {
		cfg.ReadRetries = 0
	}
	if cfg.WriteConflictRetries < 0 {
		cfg.WriteConflictRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	return &GormStore{DB: db, cfg: cfg}
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return classify(err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return classify(sqlDB.PingContext(ctx))
}

// GetCurrentUser returns the session user, creating the row on first
// authentication.
func (s *GormStore) GetCurrentUser(ctx context.Context) (*models.User, error) {
	session, ok := SessionFrom(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	var user models.User
	err := s.read(ctx, func(db *gorm.DB) error {
		fresh := models.User{
			Email:    session.Email,
			FullName: strings.TrimSpace(session.FullName),
			Roles:    strings.Join(session.Roles, ","),
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&fresh).Error; err != nil {
			return classify(err)
		}
		return classify(db.Where("email = ?", session.Email).Take(&user).Error)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser merges profile and wallet fields into the session user. Economy
// fields are rejected; they change only through MutateUser.
func (s *GormStore) UpdateUser(ctx context.Context, fields map[string]any) (*models.User, error) {
	session, ok := SessionFrom(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	for key := range fields {
		if !isProfileColumn(key) {
			return nil, fmt.Errorf("%w: user.%s", ErrFieldNotWritable, key)
		}
	}
	return s.MutateUser(ctx, session.Email, func(user *models.User, _ Tx) error {
		if len(fields) == 0 {
			return ErrNoop
		}
		return applyProfile(user, fields)
	})
}

func isProfileColumn(key string) bool {
	for _, c := range models.ProfileColumns {
		if c == key {
			return true
		}
	}
	return false
}

func applyProfile(user *models.User, fields map[string]any) error {
	for key, value := range fields {
		switch key {
		case "full_name", "wallet_address":
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: %s must be a string", ErrInvalidQuery, key)
			}
			if key == "full_name" {
				user.FullName = v
			} else {
				user.WalletAddress = v
			}
		case "wallet_connected":
			v, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%w: %s must be a boolean", ErrInvalidQuery, key)
			}
			user.WalletConnected = v
		}
	}
	return nil
}

func (s *GormStore) CreateRecord(ctx context.Context, rec models.Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return records{db: s.DB.WithContext(ctx)}.CreateRecord(rec)
}

func (s *GormStore) FindRecord(ctx context.Context, collection models.Collection, filter map[string]any, out models.Record) error {
	return s.read(ctx, func(db *gorm.DB) error {
		return records{db: db}.FindRecord(collection, filter, out)
	})
}

func (s *GormStore) ListRecords(ctx context.Context, collection models.Collection, q Query, out any) error {
	return s.read(ctx, func(db *gorm.DB) error {
		return records{db: db}.ListRecords(collection, q, out)
	})
}

func (s *GormStore) UpdateRecord(ctx context.Context, collection models.Collection, id string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return records{db: s.DB.WithContext(ctx)}.UpdateRecord(collection, id, fields)
}

// MutateUser is the single writer for a user's ledger. Each attempt reads the
// user inside a transaction, runs fn against that snapshot, checks the
// non-negativity invariant and writes the result conditioned on the version
// it read. A lost race rolls back and retries with backoff; when retries run
// out ErrConcurrentModification is returned. Errors returned by fn abort the
// attempt and are returned unchanged.
func (s *GormStore) MutateUser(ctx context.Context, email string, fn MutateFunc) (*models.User, error) {
	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		user, err := s.mutateOnce(ctx, email, fn)
		if !errors.Is(err, errVersionConflict) {
			return user, err
		}
		if attempt >= s.cfg.WriteConflictRetries {
			log.Printf("[store] write conflict on %s after %d attempts", email, attempt+1)
			return nil, ErrConcurrentModification
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (s *GormStore) mutateOnce(ctx context.Context, email string, fn MutateFunc) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var result models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("email = ?", email).Take(&user).Error; err != nil {
			return classify(err)
		}
		snapshot := user

		if err := fn(&user, records{db: tx}); err != nil {
			if errors.Is(err, ErrNoop) {
				result = snapshot
			}
			return err
		}
		if err := economy.CheckBalances(&user); err != nil {
			return err
		}

		read := user.Version
		user.Version = read + 1
		res := tx.Model(&models.User{}).
			Where("id = ? AND version = ?", user.ID, read).
			Updates(user.LedgerFields())
		if res.Error != nil {
			return classify(res.Error)
		}
		if res.RowsAffected == 0 {
			return errVersionConflict
		}
		result = user
		return nil
	})
	if errors.Is(err, ErrNoop) {
		return &result, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// read runs an idempotent operation, retrying transient failures with
// exponential backoff.
func (s *GormStore) read(ctx context.Context, op func(db *gorm.DB) error) error {
	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		err := op(s.DB.WithContext(opCtx))
		cancel()
		if err == nil || !retryable(ctx, err) {
			return err
		}
		if attempt >= s.cfg.ReadRetries {
			return err
		}
		log.Printf("[store] retrying read after %v: %v", backoff, err)
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case <-timer.C:
		return nil
	}
}

var _ DataStore = (*GormStore)(nil)
