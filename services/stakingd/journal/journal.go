package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"stakeledger/core/events"
	"stakeledger/observability"
)

// ErrNotFound is returned when a lookup has no matching row.
var ErrNotFound = errors.New("journal: not found")

// EventRecord is one committed ledger event.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"autoIncrement:false;uniqueIndex"`
	Type       string    `gorm:"size:64;index"`
	Account    string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// IdempotencyKey stores the response of a mutating request keyed by the
// client-supplied Idempotency-Key header.
type IdempotencyKey struct {
	Key       string `gorm:"primaryKey;size:128"`
	RequestID string `gorm:"size:64"`
	Subject   string `gorm:"size:64"`
	Method    string `gorm:"size:8"`
	Path      string `gorm:"size:255"`
	Status    int
	Response  string `gorm:"type:text"`
	CreatedAt time.Time
}

// LedgerNonce records a consumed ledger callback nonce.
type LedgerNonce struct {
	Nonce      string    `gorm:"primaryKey;size:128"`
	ObservedAt time.Time `gorm:"index"`
}

// ExportRecord describes an audit export written to disk.
type ExportRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"size:32;index"`
	Path      string    `gorm:"size:512"`
	Digest    string    `gorm:"size:64"`
	Rows      int
	CreatedAt time.Time
}

// AutoMigrate performs all schema migrations for the journal.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&EventRecord{},
		&IdempotencyKey{},
		&LedgerNonce{},
		&ExportRecord{},
	)
}

// Journal persists committed events and request bookkeeping.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	seq uint64
}

// Open connects to the configured database and applies migrations.
func Open(driver, dsn string, log *slog.Logger) (*Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db, log)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: db is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	j := &Journal{db: db, logger: log, now: time.Now}
	var last EventRecord
	err := db.Order("sequence desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("journal: load sequence: %w", err)
	}
	j.seq = last.Sequence
	return j, nil
}

// DB exposes the underlying handle.
func (j *Journal) DB() *gorm.DB { return j.db }

// Close releases the connection pool.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Failures are logged and counted; the ledger
// state is already committed when events arrive here.
func (j *Journal) Emit(evt events.Event) {
	if j == nil {
		return
	}
	raw, ok := events.Unwrap(evt)
	if !ok {
		return
	}
	attrs, err := json.Marshal(raw.Attributes)
	if err != nil {
		observability.Events().RecordDropped("journal")
		j.logger.Error("journal: encode attributes", slog.String("type", raw.Type), slog.Any("error", err))
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	record := EventRecord{
		ID:         uuid.New(),
		Sequence:   j.seq,
		Type:       raw.Type,
		Account:    raw.Account(),
		Attributes: string(attrs),
		CreatedAt:  j.now().UTC(),
	}
	if err := j.db.Create(&record).Error; err != nil {
		j.seq--
		observability.Events().RecordDropped("journal")
		j.logger.Error("journal: persist event", slog.String("type", raw.Type), slog.Any("error", err))
	}
}

// Query filters journal reads.
type Query struct {
	After   uint64
	Type    string
	Account string
	Limit   int
}

// Events returns journal entries ordered by sequence.
func (j *Journal) Events(ctx context.Context, q Query) ([]EventRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	tx := j.db.WithContext(ctx).Where("sequence > ?", q.After)
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Account != "" {
		tx = tx.Where("account = ?", q.Account)
	}
	var out []EventRecord
	if err := tx.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("journal: query events: %w", err)
	}
	return out, nil
}

// Decode returns the attribute map of a stored event.
func (r EventRecord) Decode() (map[string]string, error) {
	attrs := map[string]string{}
	if r.Attributes == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// LookupIdempotency returns the stored response for key.
func (j *Journal) LookupIdempotency(ctx context.Context, key string) (*IdempotencyKey, error) {
	var record IdempotencyKey
	err := j.db.WithContext(ctx).First(&record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journal: lookup idempotency: %w", err)
	}
	return &record, nil
}

// SaveIdempotency persists a response. A concurrent writer of the same key wins.
func (j *Journal) SaveIdempotency(ctx context.Context, record *IdempotencyKey) error {
	if record == nil || record.Key == "" {
		return errors.New("journal: idempotency key required")
	}
	if record.RequestID == "" {
		record.RequestID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = j.now().UTC()
	}
	return j.db.WithContext(ctx).Create(record).Error
}

// EnsureNonce stores nonce and reports whether it had already been recorded.
func (j *Journal) EnsureNonce(ctx context.Context, nonce string, observedAt time.Time) (bool, error) {
	if strings.TrimSpace(nonce) == "" {
		return false, errors.New("journal: nonce required")
	}
	res := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&LedgerNonce{Nonce: nonce, ObservedAt: observedAt.UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 0, nil
}

// PruneNonces drops nonces observed at or before cutoff.
func (j *Journal) PruneNonces(ctx context.Context, cutoff time.Time) error {
	return j.db.WithContext(ctx).Where("observed_at <= ?", cutoff.UTC()).Delete(&LedgerNonce{}).Error
}

// RecordExport stores export metadata.
func (j *Journal) RecordExport(ctx context.Context, kind, path, digest string, rows int) (*ExportRecord, error) {
	record := &ExportRecord{
		ID:        uuid.New(),
		Kind:      kind,
		Path:      path,
		Digest:    digest,
		Rows:      rows,
		CreatedAt: j.now().UTC(),
	}
	if err := j.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("journal: record export: %w", err)
	}
	return record, nil
}

// Exports lists recorded exports, newest first.
func (j *Journal) Exports(ctx context.Context, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ExportRecord
	if err := j.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("journal: list exports: %w", err)
	}
	return out, nil
}
