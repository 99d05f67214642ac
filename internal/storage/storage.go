// Package storage persists captured stream records across restarts. The whole
// dataset lives under one durable key as a JSON document keyed by session id;
// every mutation rewrites that session's slice wholesale, which keeps the
// on-disk shape trivially consistent with the in-memory stores.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"

	"github.com/streamlens/streamlens/internal/store"
)

const streamsKey = "streams"

type document struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     []byte `gorm:"column:value"`
	UpdatedAt time.Time
}

func (document) TableName() string { return "documents" }

// DB wraps a sqlite file holding the stream document. Safe for concurrent use.
type DB struct {
	db  *gorm.DB
	log zerolog.Logger

	mu  sync.Mutex
	doc []byte // current JSON document, mirrors the stored row
}

// Open creates or opens the database at path and loads the stream document
// into memory.
func Open(path string, log zerolog.Logger) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := gdb.AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	d := &DB{db: gdb, log: log, doc: []byte("{}")}

	var row document
	err = gdb.Where("key = ?", streamsKey).First(&row).Error
	switch {
	case err == nil:
		if gjson.ValidBytes(row.Value) {
			d.doc = row.Value
		} else {
			log.Warn().Str("key", streamsKey).Msg("stored document is corrupt, starting empty")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// First run.
	default:
		return nil, fmt.Errorf("load document: %w", err)
	}
	return d, nil
}

// Load returns every persisted session's records. Sessions whose payload no
// longer unmarshals are skipped, not fatal.
func (d *DB) Load() (map[string][]*store.Record, error) {
	d.mu.Lock()
	doc := d.doc
	d.mu.Unlock()

	out := make(map[string][]*store.Record)
	var iterErr error
	gjson.ParseBytes(doc).ForEach(func(key, value gjson.Result) bool {
		var records []*store.Record
		if err := json.Unmarshal([]byte(value.Raw), &records); err != nil {
			d.log.Warn().Err(err).Str("session", key.String()).Msg("skipping unreadable session payload")
			return true
		}
		out[key.String()] = records
		return true
	})
	return out, iterErr
}

// SaveSession overwrites one session's record slice inside the document and
// flushes the whole document to disk.
func (d *DB) SaveSession(sessionID string, records []*store.Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sessionID, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	doc, err := sjson.SetRawBytes(d.doc, escapeKey(sessionID), raw)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return d.flushLocked(doc)
}

// DeleteSession removes one session from the document.
func (d *DB) DeleteSession(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, err := sjson.DeleteBytes(d.doc, escapeKey(sessionID))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return d.flushLocked(doc)
}

func (d *DB) flushLocked(doc []byte) error {
	row := document{Key: streamsKey, Value: doc, UpdatedAt: time.Now()}
	if err := d.db.Save(&row).Error; err != nil {
		return fmt.Errorf("flush document: %w", err)
	}
	d.doc = doc
	return nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// escapeKey makes an arbitrary session id safe as a single sjson/gjson path
// component. Session ids are CDP target ids but nothing guarantees that.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\', '|', '#', '@':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
