package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sheet-tracker/backend/internal/domain"
)

const slowQueryThreshold = 200 * time.Millisecond

// Database is the Postgres connection behind the gorm repositories
type Database struct {
	*gorm.DB
	logger *zap.Logger
}

// GormConfig is shared by the server and the repository integration tests.
// TranslateError is required: the repositories rely on gorm.ErrDuplicatedKey.
func GormConfig(logger *zap.Logger) *gorm.Config {
	return &gorm.Config{
		Logger:                 newGormLogger(logger),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}
}

// NewDatabase opens the pool described by config
func NewDatabase(config *DatabaseConfig, logger *zap.Logger) (*Database, error) {
	db, err := gorm.Open(postgres.Open(config.DSN()), GormConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	logger.Info("Database connection established",
		zap.String("host", config.Host),
		zap.String("database", config.DBName),
		zap.Int("max_open_conns", config.MaxOpenConns),
	)
	return &Database{DB: db, logger: logger}, nil
}

// AutoMigrate creates the tracker tables and the partial index the overdue
// and due-today queries scan
func (d *Database) AutoMigrate() error {
	if err := Migrate(d.DB); err != nil {
		return err
	}
	d.logger.Info("Database migrations completed")
	return nil
}

// Migrate applies the schema to db
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Problem{},
		&domain.Sheet{},
		&domain.ProgressRecord{},
		&domain.RevisionTask{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	const pendingIndex = `CREATE INDEX IF NOT EXISTS idx_revision_tasks_pending
		ON revision_tasks (user_id, scheduled_date) WHERE completed = false`
	if err := db.Exec(pendingIndex).Error; err != nil {
		return fmt.Errorf("failed to create pending revision index: %w", err)
	}
	return nil
}

// HealthCheck pings the pool
func (d *Database) HealthCheck(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormLogger sends gorm output through zap with the query as fields.
// Missing rows are expected by the repositories and never logged.
type gormLogger struct {
	logger *zap.Logger
	level  gormlogger.LogLevel
}

func newGormLogger(logger *zap.Logger) gormlogger.Interface {
	return &gormLogger{logger: logger.Named("gorm"), level: gormlogger.Warn}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Sugar().Infof(msg, args...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Sugar().Warnf(msg, args...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Sugar().Errorf(msg, args...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error &&
		!errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey):
		sql, rows := fc()
		l.logger.Error("Query failed", zap.Error(err), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger.Warn("Slow query", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.Debug("Query", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}
