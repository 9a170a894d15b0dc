package db

import (
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
	"github.com/tursodatabase/libsql-client-go/libsql"
)

var (
	ErrDatabaseURLRequired = errors.New("TURSO_DATABASE_URL environment variable is required")
	ErrAuthTokenRequired   = errors.New("TURSO_AUTH_TOKEN environment variable is required")
)

type DB struct {
	*sql.DB
}

// NewConnection opens the libsql database named by TURSO_DATABASE_URL.
// An auth token is required except for local http:// deployments.
func NewConnection() (*DB, error) {
	dbURL := os.Getenv("TURSO_DATABASE_URL")
	logger := util.NewLogger(zerolog.ErrorLevel)
	if strings.EqualFold(dbURL, "") {
		logger.Error().Msg("TURSO_DATABASE_URL env variable not set")
		return nil, ErrDatabaseURLRequired
	}

	authToken := os.Getenv("TURSO_AUTH_TOKEN")
	if strings.EqualFold(authToken, "") && !strings.HasPrefix(dbURL, "http://") {
		logger.Error().Msg("TURSO_AUTH_TOKEN env variable not set")
		return nil, ErrAuthTokenRequired
	}

	var opts []libsql.Option
	if authToken != "" {
		opts = append(opts, libsql.WithAuthToken(authToken))
	}

	connector, err := libsql.NewConnector(dbURL, opts...)
	if err != nil {
		logger.Err(err).Msg("failed to create connector")
		return nil, err
	}

	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		logger.Err(err).Msg("failed to ping database")
		return nil, err
	}

	return &DB{DB: db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Connect is an alias for NewConnection.
func Connect() (*DB, error) {
	return NewConnection()
}
