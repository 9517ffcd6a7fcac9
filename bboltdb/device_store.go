package bboltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"go.pilab.hu/deviceauth"
	"go.pilab.hu/deviceauth/cache"
)

var (
	deviceCodesBucket = []byte("device_codes")
	userCodesBucket   = []byte("user_codes")
)

var _ deviceauth.DeviceCodeStore = (*DeviceCodeStore)(nil)

// DeviceCodeStore is a single-node persistent deviceauth.DeviceCodeStore.
// Records live in the device_codes bucket under the hashed device code; the
// user_codes bucket maps a hashed user code to that key. Every insert runs in
// one read-write transaction, which bbolt serializes.
type DeviceCodeStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// Option configures a DeviceCodeStore.
type Option func(*DeviceCodeStore)

// WithClock sets the clock used to decide whether a record is live.
func WithClock(now func() time.Time) Option {
	return func(s *DeviceCodeStore) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens or creates the database at dbPath and its buckets.
func Open(dbPath string, opts ...Option) (*DeviceCodeStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{deviceCodesBucket, userCodesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DeviceCodeStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *DeviceCodeStore) Close() error {
	return s.db.Close()
}

// GetByDeviceCode implements deviceauth.DeviceCodeStore.
func (s *DeviceCodeStore) GetByDeviceCode(_ context.Context, deviceCode string) (*deviceauth.DeviceCodeRecord, error) {
	var record *deviceauth.DeviceCodeRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		record, err = s.load(tx, []byte(cache.HashCode(deviceCode)))

		return err
	})

	return record, err
}

// GetByUserCode implements deviceauth.DeviceCodeStore.
func (s *DeviceCodeStore) GetByUserCode(_ context.Context, userCode string) (*deviceauth.DeviceCodeRecord, error) {
	var record *deviceauth.DeviceCodeRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		deviceKey := tx.Bucket(userCodesBucket).Get([]byte(cache.HashCode(userCode)))
		if deviceKey == nil {
			return deviceauth.ErrRecordNotFound
		}

		var err error
		record, err = s.load(tx, deviceKey)

		return err
	})

	return record, err
}

// load returns the live record stored under deviceKey.
func (s *DeviceCodeStore) load(tx *bbolt.Tx, deviceKey []byte) (*deviceauth.DeviceCodeRecord, error) {
	raw := tx.Bucket(deviceCodesBucket).Get(deviceKey)
	if raw == nil {
		return nil, deviceauth.ErrRecordNotFound
	}

	var data deviceauth.DeviceCodeRecordData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode device code record: %w", err)
	}

	record := data.Record()
	if record.Expired(s.now()) {
		return nil, deviceauth.ErrRecordNotFound
	}

	return record, nil
}

// InsertIfAbsent implements deviceauth.DeviceCodeStore. Expired records
// holding either code are replaced.
func (s *DeviceCodeStore) InsertIfAbsent(_ context.Context, record *deviceauth.DeviceCodeRecord) error {
	if record.Expired(s.now()) {
		return fmt.Errorf("device code record for %s has no remaining lifetime", record.ID)
	}

	payload, err := json.Marshal(record.Data())
	if err != nil {
		return fmt.Errorf("failed to encode device code record: %w", err)
	}

	deviceKey := []byte(cache.HashCode(record.DeviceCode))
	userKey := []byte(cache.HashCode(record.UserCode))

	return s.db.Update(func(tx *bbolt.Tx) error {
		devices := tx.Bucket(deviceCodesBucket)
		users := tx.Bucket(userCodesBucket)

		if _, err := s.load(tx, deviceKey); err == nil {
			return deviceauth.ErrCodeCollision
		}

		if existing := users.Get(userKey); existing != nil {
			if _, err := s.load(tx, existing); err == nil {
				return deviceauth.ErrCodeCollision
			}

			if err := s.remove(tx, append([]byte(nil), existing...)); err != nil {
				return err
			}
		}

		if err := s.remove(tx, deviceKey); err != nil {
			return err
		}

		if err := devices.Put(deviceKey, payload); err != nil {
			return fmt.Errorf("failed to put device code: %w", err)
		}

		return users.Put(userKey, deviceKey)
	})
}

// remove deletes the record under deviceKey and the user code entry pointing at it.
func (s *DeviceCodeStore) remove(tx *bbolt.Tx, deviceKey []byte) error {
	devices := tx.Bucket(deviceCodesBucket)
	users := tx.Bucket(userCodesBucket)

	raw := devices.Get(deviceKey)
	if raw == nil {
		return nil
	}

	var data deviceauth.DeviceCodeRecordData
	if err := json.Unmarshal(raw, &data); err == nil {
		userKey := []byte(cache.HashCode(data.UserCode))
		if owner := users.Get(userKey); owner != nil && string(owner) == string(deviceKey) {
			if err := users.Delete(userKey); err != nil {
				return err
			}
		}
	}

	return devices.Delete(deviceKey)
}

// DeleteExpired implements deviceauth.DeviceCodeStore.
func (s *DeviceCodeStore) DeleteExpired(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		devices := tx.Bucket(deviceCodesBucket)

		var expired [][]byte

		err := devices.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var data deviceauth.DeviceCodeRecordData
			if err := json.Unmarshal(v, &data); err != nil {
				return nil // unreadable entries are left for inspection
			}

			if data.Record().Expired(now) {
				expired = append(expired, append([]byte(nil), k...))
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := s.remove(tx, k); err != nil {
				return err
			}
		}

		removed = len(expired)

		return nil
	})

	return removed, err
}
