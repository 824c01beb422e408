package db

import (
	"database/sql"
)

// Database is a connectable SQL store.
type Database interface {
	Connect() error
	Close() error
	DB() *sql.DB
}
