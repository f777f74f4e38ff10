package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sohana-dev/nammai-web/internal/models"
	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// BoltDB implements the document-store contract on a local BoltDB file. It
// is the zero-infrastructure alternative to Mongo for single-node
// deployments.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (creating if needed, with 0600 permissions) the database
// at path and initializes the sessions bucket.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})

	return BoltDB{db: db}, err
}

// SessionsByOwner returns the owner's sessions ordered by creation time
// descending.
func (b BoltDB) SessionsByOwner(_ context.Context, ownerID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return nil
		}

		return bk.ForEach(func(k, v []byte) error {
			var sess models.ChatSession
			if err := json.Unmarshal(v, &sess); err != nil {
				return fmt.Errorf("failed to unmarshal session: %w", err)
			}
			if sess.OwnerID != ownerID {
				return nil
			}
			sess.ID = string(k)
			sessions = append(sessions, sess)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(sessions, func(a, b models.ChatSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sessions, nil
}

// InsertSession stores a new session record. The assigned id combines the
// bucket sequence number with the session's client-generated id.
func (b BoltDB) InsertSession(_ context.Context, sess models.ChatSession) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			// An empty id here would be mistaken for a successful insert.
			return fmt.Errorf("sessions bucket is missing")
		}

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("session-%d-%s", seq, sess.ID)
		sess.ID = newID

		v, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		return bk.Put([]byte(newID), v)
	})

	return newID, err
}

// UpdateSession overwrites an existing session record. Unknown ids are
// silently ignored.
func (b BoltDB) UpdateSession(_ context.Context, sess models.ChatSession) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return nil
		}
		if bk.Get([]byte(sess.ID)) == nil {
			return nil
		}

		v, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		return bk.Put([]byte(sess.ID), v)
	})
}

// DeleteSession removes a session record.
func (b BoltDB) DeleteSession(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return nil
		}
		return bk.Delete([]byte(id))
	})
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
