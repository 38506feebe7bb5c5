// Package database provides database setup, models, and the data access
// layer (Store) on SQLite or MongoDB.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/edgard/lensbot/internal/config"
	"github.com/edgard/lensbot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// Open connects to the configured backend, applies migrations and returns
// the Store.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		db, err := NewDB(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewStore(db, logger), nil
	case "mongodb":
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		client, err := NewMongoClient(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return NewMongoStore(client, cfg.MongoDatabase, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewDB initializes, applies migrations, and returns a new database connection pool.
// dbPath should be a path to the SQLite database file.
func NewDB(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite doesn't support concurrent writes, so max open conns = 1
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ApplyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied successfully", "path", ExtractDBNameFromPath(dbPath))
	return db, nil
}

// NewMongoClient connects, pings and migrates the MongoDB database.
func NewMongoClient(ctx context.Context, uri, dbName string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	cleanup := func() {
		if dErr := client.Disconnect(context.Background()); dErr != nil {
			slog.Error("Error disconnecting from mongodb", "error", dErr)
		}
	}

	if err := client.Ping(ctx, nil); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	driver, err := mongodb.WithInstance(client, &mongodb.Config{DatabaseName: dbName})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create mongodb migration driver: %w", err)
	}
	if err := runMigrations("mongodb", driver); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("MongoDB connected and migrations applied successfully", "database", dbName)
	return client, nil
}

// ApplyMigrations runs the embedded SQLite migrations.
func ApplyMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite database driver: %w", err)
	}
	return runMigrations("sqlite", driver)
}

// runMigrations applies the migrations embedded under dir, which is also
// the driver name.
func runMigrations(dir string, driver migratedb.Driver) error {
	slog.Info("Applying database migrations...", "driver", dir)

	sourceDriver, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, dir, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No database migrations to apply.", "driver", dir)
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database migrations applied successfully.", "driver", dir)
	return nil
}

// ExtractDBNameFromPath extracts the database file path from a possibly URL-formatted path.
func ExtractDBNameFromPath(path string) string {
	path = strings.TrimPrefix(path, "file:")

	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}
