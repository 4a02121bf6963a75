package chaperone

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"
)

var (
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteMaxConnLifetime = 5 * time.Minute
	sqliteExecPragma      = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
	}
)

// ModelUnixTime is an embeddable model with Unix millisecond timestamps
// for creation and update, plus soft deletion.
type ModelUnixTime struct {
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64          `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// DBI is the write-side database interface. When using SQLite, writes
// are serialized behind a mutex; reads go straight to [database.DB].
type DBI interface {
	DB() *gorm.DB
	Create(value any) (rowsAffected int64, err error)
	Save(value any) (rowsAffected int64, err error)
	Updates(model any, values any) (rowsAffected int64, err error)
	Delete(value any, conds ...any) (rowsAffected int64, err error)
}

type database struct {
	db                     *gorm.DB
	mu                     sync.Mutex
	logger                 *slog.Logger
	enableConcurrentWrites bool
}

// NewDatabase wraps a GORM connection. enableConcurrentWrites should be
// false for SQLite and true for postgres.
func NewDatabase(db *gorm.DB, log *slog.Logger, enableConcurrentWrites bool) DBI {
	if log == nil {
		log = slog.Default()
	}
	return &database{
		db:                     db,
		logger:                 log.With(loggerNameKey, "writedb"),
		enableConcurrentWrites: enableConcurrentWrites,
	}
}

func (d *database) DB() *gorm.DB {
	return d.db
}

func (d *database) lock() func() {
	if d.enableConcurrentWrites {
		return func() {}
	}
	d.mu.Lock()
	return d.mu.Unlock
}

func (d *database) Create(value any) (int64, error) {
	defer d.lock()()
	tx := d.db.Create(value)
	return tx.RowsAffected, tx.Error
}

func (d *database) Save(value any) (int64, error) {
	defer d.lock()()
	tx := d.db.Save(value)
	return tx.RowsAffected, tx.Error
}

func (d *database) Updates(model any, values any) (int64, error) {
	defer d.lock()()
	tx := d.db.Model(model).Updates(values)
	return tx.RowsAffected, tx.Error
}

func (d *database) Delete(value any, conds ...any) (int64, error) {
	defer d.lock()()
	tx := d.db.Delete(value, conds...)
	return tx.RowsAffected, tx.Error
}

// CreateDB opens the given database and migrates the bot's models.
func CreateDB(
	ctx context.Context,
	databaseType string,
	dsn string,
	gormLogger *gormStructuredLogger,
) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch databaseType {
	case dbTypeSQLite:
		dialector = sqlite.Open(dsn)
	case dbTypePostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database type: %s", databaseType)
	}

	cfg := &gorm.Config{}
	if gormLogger != nil {
		cfg.Logger = gormLogger
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if databaseType == dbTypeSQLite {
		sqlDB, sqlErr := db.DB()
		if sqlErr != nil {
			return nil, sqlErr
		}
		sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
		sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)
		sqlDB.SetConnMaxLifetime(sqliteMaxConnLifetime)
		for _, pragma := range sqliteExecPragma {
			if execErr := db.WithContext(ctx).Exec(pragma).Error; execErr != nil {
				return nil, fmt.Errorf("error executing %q: %w", pragma, execErr)
			}
		}
	}

	if err = db.WithContext(ctx).AutoMigrate(
		&User{},
		&AwayStatus{},
		&ModerationEvent{},
	); err != nil {
		return nil, fmt.Errorf("error migrating models: %w", err)
	}
	return db, nil
}
