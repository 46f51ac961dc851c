package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tahcohcat/lector-web/internal/logger"
)

const MemoryPath = ":memory:"

type DB struct {
	*sqlx.DB
}

// NewDB opens the sqlite database at path and creates the schema.
// MemoryPath keeps everything in process memory.
func NewDB(path string) (*DB, error) {
	if path == "" {
		path = MemoryPath
	}

	dsn := path + "?_foreign_keys=on"
	if path == MemoryPath {
		dsn = fmt.Sprintf("file:lector-%s?mode=memory&_foreign_keys=on", uuid.NewString())
	}

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if path == MemoryPath {
		// a second connection would open a different, empty database
		db.SetMaxOpenConns(1)
	}

	dbWrapper := &DB{DB: db}
	if err := dbWrapper.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.New().WithField("path", path).Info("Database connection established and tables initialized")
	return dbWrapper, nil
}

func (db *DB) createTables() error {
	clipsTable := `
	CREATE TABLE IF NOT EXISTS audio_clips (
		cache_key TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		voice_id TEXT NOT NULL,
		content_type TEXT NOT NULL,
		audio BLOB NOT NULL,
		size INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_audio_clips_last_used ON audio_clips(last_used_at);`,
	}

	if _, err := db.Exec(clipsTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
