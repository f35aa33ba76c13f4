package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var (
	addedUsernamesBucket = []byte("added_usernames")
	draftsBucket         = []byte("drafts")
)

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("not found")

// Database wraps the bbolt store. Values are JSON encoded.
type Database struct {
	store *bbolt.DB
}

// AddedUsernames is the locally cached list of usernames a user has added
type AddedUsernames struct {
	Usernames []string  `json:"usernames"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = store.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{addedUsernamesBucket, draftsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

func userKey(email string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(email)))
}

func (db *Database) put(bucket []byte, key []byte, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	return db.store.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put(key, data)
	})
}

func (db *Database) get(bucket []byte, key []byte, value interface{}) error {
	return db.store.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, value); err != nil {
			return fmt.Errorf("failed to decode value: %w", err)
		}
		return nil
	})
}

func (db *Database) delete(bucket []byte, key []byte) error {
	return db.store.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

// Added username operations

// GetAddedUsernames retrieves the cached added-usernames list for a user
func (db *Database) GetAddedUsernames(email string) (*AddedUsernames, error) {
	var added AddedUsernames
	if err := db.get(addedUsernamesBucket, userKey(email), &added); err != nil {
		return nil, err
	}
	return &added, nil
}

// SaveAddedUsernames replaces the cached added-usernames list for a user
func (db *Database) SaveAddedUsernames(email string, usernames []string) error {
	return db.put(addedUsernamesBucket, userKey(email), &AddedUsernames{
		Usernames: usernames,
		UpdatedAt: time.Now(),
	})
}

// Draft operations

// SaveDraft persists the user's current draft so it survives restarts
func (db *Database) SaveDraft(email string, draft *ContentItem) error {
	return db.put(draftsBucket, userKey(email), draft)
}

// GetDraft retrieves the user's persisted draft
func (db *Database) GetDraft(email string) (*ContentItem, error) {
	var draft ContentItem
	if err := db.get(draftsBucket, userKey(email), &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// DeleteDraft removes the user's persisted draft. Deleting a missing draft is a no-op.
func (db *Database) DeleteDraft(email string) error {
	return db.delete(draftsBucket, userKey(email))
}
