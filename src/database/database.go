// backend/src/database/database.go
package database

import (
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/username/traderecap/backend/src/logger"
	_ "modernc.org/sqlite"
)

// DB is the application-wide SQLite handle, initialized once at startup.
var DB *sql.DB

// InitDB opens the SQLite database with WAL journaling, a busy timeout and
// foreign keys enabled. SQLite allows one writer at a time; the pool is
// capped at a single connection so imports never hit SQLITE_BUSY under
// concurrent requests.
func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", sqliteDSN(databasePath))
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		stdlog.Fatalf("failed to ping database at %s: %v", databasePath, err)
	}
	DB = db
	logger.L.Info("Database ready", "path", databasePath, "journal_mode", "WAL")
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)
}

// RunMigrations applies all pending schema migrations from db/migrations.
// Startup aborts on any failure other than "no change": serving requests
// against a half-migrated schema corrupts imported trade data.
func RunMigrations(databasePath string) {
	if DB == nil {
		stdlog.Fatal("database connection must be initialized before running migrations")
	}

	driver, err := sqlite.WithInstance(DB, &sqlite.Config{})
	if err != nil {
		stdlog.Fatalf("could not create sqlite migration driver: %v", err)
	}

	sourceURL, err := migrationsSourceURL()
	if err != nil {
		stdlog.Fatalf("could not resolve migrations path: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, databasePath, driver)
	if err != nil {
		stdlog.Fatalf("migration instance creation failed (source %s): %v", sourceURL, err)
	}

	logger.L.Info("Applying database migrations...", "source", sourceURL)
	switch err := m.Up(); {
	case err == nil:
		logger.L.Info("Database migrations applied successfully.")
	case errors.Is(err, migrate.ErrNoChange):
		logger.L.Info("Database schema already up to date.")
	default:
		stdlog.Fatalf("failed to apply migrations: %v", err)
	}
}

// migrationsSourceURL resolves the migrations directory: a fixed container
// path in production, the working directory's db/migrations otherwise.
func migrationsSourceURL() (string, error) {
	if os.Getenv("GO_ENV") == "PRO" {
		return "file:///app/db/migrations", nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return "file://" + filepath.ToSlash(filepath.Join(cwd, "db", "migrations")), nil
}
