package utils

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenGorm wraps an already-open pgx *sql.DB so gorm-backed repositories share
// the same pool as the raw-SQL repositories.
func OpenGorm(db *sql.DB, debug bool) (*gorm.DB, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(slogWriter{}, gormlogger.Config{
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
}

// AutoMigrate creates or updates tables for the given gorm models.
func AutoMigrate(gdb *gorm.DB, models ...any) error {
	if gdb == nil {
		return errors.New("gorm db is nil")
	}
	return gdb.AutoMigrate(models...)
}

type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Default().Debug("gorm", "msg", fmt.Sprintf(format, args...))
}
