// Package store persists transactions, invoices, quotes and customers with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"buchhaltung/internal/config"
	"buchhaltung/internal/logger"
	"buchhaltung/pkg/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

const (
	defaultSQLitePath  = "buchhaltung.db"
	slowQueryThreshold = 500 * time.Millisecond
)

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	const op = "Open"

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%s: unsupported driver %q", op, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logger.WithComponent("gorm")),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open %s database: %w", op, cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get sql db: %w", op, err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, nil
}

// Migrate creates or updates the tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Customer{},
		&models.Invoice{},
		&models.Quote{},
		&models.BankTransaction{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// gormLogger writes gorm's statements to zerolog: queries at debug, slow
// queries at warn and failures at error.
type gormLogger struct {
	log  zerolog.Logger
	slow time.Duration
}

func newGormLogger(log zerolog.Logger) gormlogger.Interface {
	return gormLogger{log: log, slow: slowQueryThreshold}
}

func (l gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.log.Info().Msgf(msg, data...)
}

func (l gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.log.Warn().Msgf(msg, data...)
}

func (l gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.log.Error().Msgf(msg, data...)
}

func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	var event *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		event = l.log.Error().Err(err)
	case elapsed > l.slow:
		event = l.log.Warn().Dur("threshold", l.slow)
	default:
		event = l.log.Debug()
	}
	if !event.Enabled() {
		return
	}

	sql, rows := fc()
	event.Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("SQL executed")
}
