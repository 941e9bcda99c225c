// Copyright 2022 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The stor package manages the storage of event records.
package stor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when no record matches the requested key.
var ErrNotFound = errors.New("record not found")

type (

	// generic store
	dbStore struct {
		db *gorm.DB
	}

	// entity stores
	eventStore dbStore

	// Store interface, giving access to specialized interfaces
	Store interface {
		Event() EventRepository
		Ping(ctx context.Context) error
		Close() error
	}

	// EventRepository interface, defining event operations.
	// Every operation is atomic on a single key; there is no multi-key transaction.
	EventRepository interface {
		Put(ctx context.Context, e *Event) error
		Update(ctx context.Context, e *Event) error
		Get(ctx context.Context, eventID string) (*Event, error)
		Delete(ctx context.Context, eventID string) (*Event, error)
		Scan(ctx context.Context) ([]Event, error)
		List(ctx context.Context, pageNum, pageSize int) ([]Event, error)
		Count(ctx context.Context) (int64, error)
	}
)

// implementation of the repository interface
func (s *dbStore) Event() EventRepository {
	return (*eventStore)(s)
}

// Ping checks the database connection.
func (s *dbStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection pool.
func (s *dbStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Init initializes the database
func Init(dsn string) (Store, error) {
	var err error

	dialect, cnx := dbFromURI(dsn)
	if dialect == "error" {
		return nil, fmt.Errorf("incorrect database source name: %q", dsn)
	}
	switch dialect {
	case "sqlite3", "mysql", "postgres":
	default:
		return nil, fmt.Errorf("invalid dialect: %s", dialect)
	}

	// add parameters specific to the dialect
	cnx = addParamsDialectSpecific(cnx, dialect)

	// database logger
	newLogger := logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level (Silent, Error, Warn, Info)
			IgnoreRecordNotFoundError: true,        // not found is an expected outcome of Get and Delete
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(GormDialector(cnx), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		log.Errorf("Failed connecting to the database: %v", err)
		return nil, err
	}

	err = performDialectSpecific(db, dialect)
	if err != nil {
		log.Errorf("Failed performing dialect specific database init: %v", err)
		return nil, err
	}

	err = db.AutoMigrate(&Event{})
	if err != nil {
		log.Errorf("Failed performing database automigrate: %v", err)
		return nil, err
	}

	stor := &dbStore{db: db}

	return stor, nil
}

// dbFromURI splits a dsn into its dialect and connection string
func dbFromURI(uri string) (string, string) {
	parts := strings.SplitN(uri, "://", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "error", ""
	}
	return parts[0], parts[1]
}

// addParamsDialectSpecific takes a connection string and adds parameters specific to the SQL dialect
func addParamsDialectSpecific(cnx, dialect string) string {
	sep := "?"
	if strings.Contains(cnx, "?") {
		sep = "&"
	}
	switch dialect {
	case "sqlite3":
		if !strings.Contains(cnx, "mode=") {
			cnx += sep + "mode=rwc"
		}
	case "mysql":
		// clientFoundRows: an update writing identical values still counts the matched row
		cnx += sep + "charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true"
	case "postgres":
		// pgx expects the full url form
		cnx = "postgres://" + cnx
		if !strings.Contains(cnx, "sslmode=") {
			cnx += sep + "sslmode=disable"
		}
	default:
		log.Warnf("Invalid dialect: %s", dialect)
	}
	return cnx
}

// performDialectSpecific
func performDialectSpecific(db *gorm.DB, dialect string) error {
	switch dialect {
	case "sqlite3":
		err := db.Exec("PRAGMA journal_mode = WAL").Error
		if err != nil {
			return err
		}
	case "mysql":
		// nothing , so far
	case "postgres":
		// nothing , so far
	default:
		return fmt.Errorf("invalid dialect: %s", dialect)
	}
	return nil
}

// notFound maps the gorm error on a missing record to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
