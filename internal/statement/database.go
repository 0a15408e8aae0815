package statement

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const sessionBucketName = "sessions"

// BoltCache implements Cache on top of a BoltDB file so entries survive a
// server restart
type BoltCache struct {
	db *bbolt.DB
}

// NewBoltCache opens (or creates) the cache file at path
func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltCache{db: db}, nil
}

// Get returns the session's entry
func (b *BoltCache) Get(session string) (*Entry, error) {
	var entry *Entry
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(sessionBucketName)).Get([]byte(session))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", session, err)
	}
	return entry, nil
}

// Put replaces the session's entry
func (b *BoltCache) Put(session string, entry *Entry) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling entry: %w", err)
		}
		return tx.Bucket([]byte(sessionBucketName)).Put([]byte(session), data)
	})
}

// Close closes the database connection
func (b *BoltCache) Close() error {
	return b.db.Close()
}
