package database

import (
	"database/sql"
	"embed"
	"net/url"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/maraakiz/maraakiz/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

var gooseOnce sync.Once

// DB bundles the ORM handle and the sqlx handle used by report queries. Both share one *sql.DB.
type DB struct {
	Gorm *gorm.DB
	Sqlx *sqlx.DB
}

// SQL returns the underlying connection pool.
func (db *DB) SQL() *sql.DB {
	return db.Sqlx.DB
}

func (db *DB) Close() error {
	return db.Sqlx.Close()
}

// DSN builds the sqlite3 data source name of a database file, with foreign keys enforced.
func DSN(path string) string {
	q := make(url.Values)
	q.Set("_foreign_keys", "1")
	q.Set("_busy_timeout", "5000")
	return "file:" + path + "?" + q.Encode()
}

// Open connects to the configured database file.
func Open(conf *core.Config) (*DB, error) {
	return OpenDSN(DSN(conf.Database.Path), conf.Debug && !conf.TestMode)
}

// OpenDSN connects to dsn. Every time is handled in UTC.
func OpenDSN(dsn string, logQueries bool) (*DB, error) {
	lvl := gormlogger.Silent
	if logQueries {
		lvl = gormlogger.Warn
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(lvl),
		NowFunc:                func() time.Time { return time.Now().UTC() },
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	sx := sqlx.NewDb(sqlDB, "sqlite3")
	// untagged struct fields map to the same columns as with gorm
	naming := schema.NamingStrategy{}
	sx.MapperFunc(func(field string) string { return naming.ColumnName("", field) })
	return &DB{Gorm: gdb, Sqlx: sx}, nil
}

func initGoose() {
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations)
		_ = goose.SetDialect("sqlite3")
	})
}

// RunMigrations runs any goose command (up, down, status, redo, version, ...) on the embedded migrations.
func RunMigrations(db *sql.DB, command string, args ...string) error {
	initGoose()
	if err := goose.Run(command, db, "migrations", args...); err != nil {
		return errors.Wrapf(err, "goose %s", command)
	}
	return nil
}

// Migrate applies every pending migration.
func Migrate(db *sql.DB) error {
	if err := RunMigrations(db, "up"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
