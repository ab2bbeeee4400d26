package storage

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	json "github.com/nikkolasg/hexjson"
	bolt "go.etcd.io/bbolt"
)

// BoltOpenPerm is the file mode of a newly created users database
const BoltOpenPerm = 0600

var usersBucket = []byte("users")

// BoltStore persists users in a bbolt file, JSON-encoded with byte strings
// as hex. Pending sessions are kept in memory only.
type BoltStore struct {
	*SessionRegistry

	db    *bolt.DB
	clock clockwork.Clock
}

// NewBoltStore opens or creates the users database at path.
func NewBoltStore(path string, opts SessionOptions) (*BoltStore, error) {
	opts.setDefaults()

	db, err := bolt.Open(path, BoltOpenPerm, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open users database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create users bucket: %w", err)
	}

	sessions, err := NewSessionRegistry(opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{
		SessionRegistry: sessions,
		db:              db,
		clock:           opts.Clock,
	}, nil
}

// PutUser registers or re-registers a user in a single transaction
func (b *BoltStore) PutUser(user *User) error {
	if err := validateUser(user); err != nil {
		return err
	}

	entry := user.clone()
	now := b.clock.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(usersBucket)
		key := []byte(entry.Identity)

		if prev := bucket.Get(key); prev != nil {
			var old User
			if err := json.Unmarshal(prev, &old); err == nil {
				entry.CreatedAt = old.CreatedAt
			}
		}

		value, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
}

// GetUser retrieves a user by identity
func (b *BoltStore) GetUser(identity string) (*User, error) {
	var user *User
	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(usersBucket).Get([]byte(identity))
		if value == nil {
			return ErrUserNotFound
		}
		user = new(User)
		return json.Unmarshal(value, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns all users in key order
func (b *BoltStore) ListUsers() ([]User, error) {
	var users []User
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(_, value []byte) error {
			var user User
			if err := json.Unmarshal(value, &user); err != nil {
				return err
			}
			users = append(users, user)
			return nil
		})
	})
	return users, err
}

// Ping checks that the database can open a read transaction
func (b *BoltStore) Ping() error {
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(usersBucket) == nil {
			return fmt.Errorf("users bucket missing")
		}
		return nil
	})
}

// Close stops the sweeper and closes the database
func (b *BoltStore) Close() error {
	var result *multierror.Error
	if err := b.SessionRegistry.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := b.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
