package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const migrateLockID int64 = 51127013

// Supported database drivers.
const (
	DriverPostgres = "postgresql"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type GormStoreOptions struct {
	PoolSize    int
	MaxOverflow int
	Recycle     time.Duration
	PoolTimeout time.Duration
	PrePing     bool
	Echo        bool
}

type GormStoreOption func(*GormStoreOptions)

// WithPool sets the persistent pool size and the extra connections allowed on top of it.
func WithPool(size, overflow int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.PoolSize = size
		opts.MaxOverflow = overflow
	}
}

// WithRecycle closes connections older than d.
func WithRecycle(d time.Duration) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.Recycle = d
	}
}

// WithPoolTimeout bounds how long pings and migrations wait for a connection.
func WithPoolTimeout(d time.Duration) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.PoolTimeout = d
	}
}

// WithPrePing verifies connectivity when the store is opened.
func WithPrePing(enabled bool) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.PrePing = enabled
	}
}

// WithEcho logs every SQL statement.
func WithEcho(enabled bool) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.Echo = enabled
	}
}

// GormStore implements Store using GORM over Postgres, MySQL or SQLite.
type GormStore struct {
	db     *gorm.DB
	driver string
	opts   GormStoreOptions
}

// NewGormStore opens the DB and applies pool settings. Schema creation is
// left to Migrate.
func NewGormStore(driver, dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{
		PoolSize:    30,
		MaxOverflow: 10,
		Recycle:     time.Hour,
		PoolTimeout: 30 * time.Second,
	}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	driver = strings.ToLower(strings.TrimSpace(driver))
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if opts.Echo {
		level = gormlogger.Info
	}
	gormLog := gormlogger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if opts.PoolSize > 0 {
		sqlDB.SetMaxIdleConns(opts.PoolSize)
		sqlDB.SetMaxOpenConns(opts.PoolSize + max(opts.MaxOverflow, 0))
	}
	if opts.Recycle > 0 {
		sqlDB.SetConnMaxLifetime(opts.Recycle)
	}
	s := &GormStore{db: db, driver: driver, opts: opts}
	if opts.PrePing {
		if err := s.Ping(context.Background()); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ping db: %w", err)
		}
	}
	return s, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn required")
	}
	switch driver {
	case DriverPostgres, "postgres":
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite, "sqlite3":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate creates or updates every table. On Postgres and MySQL concurrent
// migrations are serialized with a database-level lock.
func (s *GormStore) Migrate() error {
	return s.withMigrationLock(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(allModels()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	})
}

func (s *GormStore) withMigrationLock(fn func(*gorm.DB) error) error {
	var lockSQL, unlockSQL string
	var lockArg any
	switch s.driver {
	case DriverPostgres, "postgres":
		lockSQL, unlockSQL, lockArg = "SELECT pg_advisory_lock($1)", "SELECT pg_advisory_unlock($1)", migrateLockID
	case DriverMySQL:
		lockSQL, unlockSQL, lockArg = "SELECT GET_LOCK(?, 30)", "SELECT RELEASE_LOCK(?)", "docintake_migrate"
	default:
		return fn(s.db)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout())
	defer cancel()
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execLock(ctx, conn, lockSQL, lockArg); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execLock(context.Background(), conn, unlockSQL, lockArg)
	}()
	return fn(s.db)
}

func (s *GormStore) lockTimeout() time.Duration {
	if s.opts.PoolTimeout > 0 {
		return s.opts.PoolTimeout
	}
	return 30 * time.Second
}

func execLock(ctx context.Context, conn *sql.Conn, query string, arg any) error {
	_, err := conn.ExecContext(ctx, query, arg)
	return err
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout())
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// PoolStats reports connection pool usage.
func (s *GormStore) PoolStats() (PoolStats, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return PoolStats{}, err
	}
	st := sqlDB.Stats()
	return PoolStats{
		PoolSize:  s.opts.PoolSize,
		MaxOpen:   st.MaxOpenConnections,
		Open:      st.OpenConnections,
		InUse:     st.InUse,
		Idle:      st.Idle,
		Overflow:  max(st.OpenConnections-s.opts.PoolSize, 0),
		WaitCount: st.WaitCount,
		Timeout:   s.opts.PoolTimeout,
		Recycle:   s.opts.Recycle,
	}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
