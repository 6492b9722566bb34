package platon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	sqliteMaxOpenConns = 1
	sqliteMaxIdleConns = 1
	sqliteExecPragma   = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
	}
	databaseSlowThreshold = 200 * time.Millisecond
)

// ModelUintID is an embeddable model providing a uint primary key.
type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// ModelUnixTime is an embeddable model with Unix millisecond timestamps for
// creation and update.
type ModelUnixTime struct {
	CreatedAt int64 `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64 `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
}

// newDatabase opens the SQLite database, applies the usual pragmas, and
// migrates the bot's models.
func newDatabase(
	ctx context.Context,
	cfg *Config,
	handler slog.Handler,
) (*gorm.DB, error) {
	db, err := gorm.Open(
		sqlite.Open(cfg.Database),
		&gorm.Config{Logger: newGORMLogger(handler, databaseSlowThreshold)},
	)
	if err != nil {
		return nil, fmt.Errorf("error opening database %q: %w", cfg.Database, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
	sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)

	for _, pragma := range sqliteExecPragma {
		if rv := db.WithContext(ctx).Exec(pragma); rv.Error != nil {
			return nil, fmt.Errorf("error executing %q: %w", pragma, rv.Error)
		}
	}

	if err = db.WithContext(ctx).AutoMigrate(
		&QuestEpoch{},
		&ChannelSettings{},
	); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return db, nil
}

// writeDB serializes writes to the SQLite database. With a single
// connection, interleaved writes from interaction goroutines would
// otherwise contend on the driver level.
type writeDB struct {
	db     *gorm.DB
	mu     sync.Mutex
	logger *slog.Logger
}

func newWriteDB(db *gorm.DB, log *slog.Logger) *writeDB {
	if log == nil {
		log = slog.Default()
	}
	return &writeDB{db: db, logger: log.With(loggerNameKey, "write_db")}
}

// Save upserts the given model.
func (w *writeDB) Save(ctx context.Context, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rv := w.db.WithContext(ctx).Save(value); rv.Error != nil {
		w.logger.ErrorContext(ctx, "error saving record", tint.Err(rv.Error))
		return rv.Error
	}
	return nil
}

// Create inserts the given model.
func (w *writeDB) Create(ctx context.Context, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rv := w.db.WithContext(ctx).Create(value); rv.Error != nil {
		w.logger.ErrorContext(ctx, "error creating record", tint.Err(rv.Error))
		return rv.Error
	}
	return nil
}
