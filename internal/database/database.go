// Package database opens the target database segments run against.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// ErrUnsupportedDriver is returned for driver names DriverName does not know.
type ErrUnsupportedDriver struct {
	Driver string
}

func (e *ErrUnsupportedDriver) Error() string {
	return fmt.Sprintf("unsupported database driver: %s", e.Driver)
}

// DriverName maps a configured driver or provider name to a registered
// database/sql driver. It returns "" when the name is unknown.
func DriverName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "postgresql", "pgsql":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	default:
		return ""
	}
}

// Open connects to dsn with the named driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	name := DriverName(driver)
	if name == "" {
		return nil, &ErrUnsupportedDriver{Driver: driver}
	}
	if dsn == "" {
		return nil, fmt.Errorf("open %s: empty connection string", name)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if name == "sqlite3" {
		// SQLite serializes writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return db, nil
}
