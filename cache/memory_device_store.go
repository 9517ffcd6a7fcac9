package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"go.pilab.hu/deviceauth"
)

var _ deviceauth.DeviceCodeStore = (*MemoryDeviceCodeStore)(nil)

// DefaultExpiryGrace is how long ttlcache keeps an entry past its ExpiresAt.
// Entries inside the window stay visible to DeleteExpired, which counts them.
const DefaultExpiryGrace = 2 * deviceauth.DefaultSweepInterval

// MemoryDeviceCodeStore is a process-local DeviceCodeStore backed by two ttlcache
// instances, one per lookup path. It is only correct for a single instance.
type MemoryDeviceCodeStore struct {
	mu           sync.Mutex
	byDeviceCode *ttlcache.Cache[string, *deviceauth.DeviceCodeRecord]
	byUserCode   *ttlcache.Cache[string, *deviceauth.DeviceCodeRecord]
	now          func() time.Time
	grace        time.Duration
}

// MemoryStoreOption configures a MemoryDeviceCodeStore.
type MemoryStoreOption func(*MemoryDeviceCodeStore)

// WithStoreClock sets the clock used to decide whether a record is live.
func WithStoreClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryDeviceCodeStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithExpiryGrace sets how long expired entries are retained for DeleteExpired.
// It should exceed the sweep interval.
func WithExpiryGrace(d time.Duration) MemoryStoreOption {
	return func(s *MemoryDeviceCodeStore) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// NewMemoryDeviceCodeStore creates the store and starts the ttlcache janitors.
// Call Stop to release them.
func NewMemoryDeviceCodeStore(opts ...MemoryStoreOption) *MemoryDeviceCodeStore {
	newCache := func() *ttlcache.Cache[string, *deviceauth.DeviceCodeRecord] {
		return ttlcache.New(
			ttlcache.WithTTL[string, *deviceauth.DeviceCodeRecord](deviceauth.DefaultCodeLifetime),
			ttlcache.WithDisableTouchOnHit[string, *deviceauth.DeviceCodeRecord](),
		)
	}

	s := &MemoryDeviceCodeStore{
		byDeviceCode: newCache(),
		byUserCode:   newCache(),
		now:          time.Now,
		grace:        DefaultExpiryGrace,
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.byDeviceCode.Start()
	go s.byUserCode.Start()

	return s
}

// Stop halts the background expiry janitors.
func (s *MemoryDeviceCodeStore) Stop() {
	s.byDeviceCode.Stop()
	s.byUserCode.Stop()
}

// GetByDeviceCode implements deviceauth.DeviceCodeStore.
func (s *MemoryDeviceCodeStore) GetByDeviceCode(_ context.Context, deviceCode string) (*deviceauth.DeviceCodeRecord, error) {
	return s.get(s.byDeviceCode, deviceCode)
}

// GetByUserCode implements deviceauth.DeviceCodeStore.
func (s *MemoryDeviceCodeStore) GetByUserCode(_ context.Context, userCode string) (*deviceauth.DeviceCodeRecord, error) {
	return s.get(s.byUserCode, userCode)
}

func (s *MemoryDeviceCodeStore) get(
	c *ttlcache.Cache[string, *deviceauth.DeviceCodeRecord],
	code string,
) (*deviceauth.DeviceCodeRecord, error) {
	item := c.Get(HashCode(code))
	if item == nil || item.Value().Expired(s.now()) {
		return nil, deviceauth.ErrRecordNotFound
	}

	cp := *item.Value()

	return &cp, nil
}

// InsertIfAbsent implements deviceauth.DeviceCodeStore.
func (s *MemoryDeviceCodeStore) InsertIfAbsent(_ context.Context, record *deviceauth.DeviceCodeRecord) error {
	now := s.now()

	ttl := ttlcache.NoTTL
	if !record.ExpiresAt.IsZero() {
		if record.Expired(now) {
			return fmt.Errorf("device code record for %s has no remaining lifetime", record.ID)
		}

		ttl = record.TTL(now) + s.grace
	}

	deviceKey := HashCode(record.DeviceCode)
	userKey := HashCode(record.UserCode)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(s.byDeviceCode, deviceKey, now) || s.live(s.byUserCode, userKey, now) {
		return deviceauth.ErrCodeCollision
	}

	cp := *record
	s.byDeviceCode.Set(deviceKey, &cp, ttl)
	s.byUserCode.Set(userKey, &cp, ttl)

	return nil
}

func (s *MemoryDeviceCodeStore) live(
	c *ttlcache.Cache[string, *deviceauth.DeviceCodeRecord],
	key string,
	now time.Time,
) bool {
	item := c.Get(key)
	return item != nil && !item.Value().Expired(now)
}

// DeleteExpired implements deviceauth.DeviceCodeStore. Records are judged by
// the store clock; ttlcache only drops entries whose grace window has passed.
func (s *MemoryDeviceCodeStore) DeleteExpired(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for key, item := range s.byDeviceCode.Items() {
		rec := item.Value()
		if !rec.Expired(now) {
			continue
		}

		s.byDeviceCode.Delete(key)
		s.byUserCode.Delete(HashCode(rec.UserCode))
		removed++
	}

	for key, item := range s.byUserCode.Items() {
		if item.Value().Expired(now) {
			s.byUserCode.Delete(key)
		}
	}

	s.byDeviceCode.DeleteExpired()
	s.byUserCode.DeleteExpired()

	return removed, nil
}

// Len returns the number of records held, live or not yet purged.
func (s *MemoryDeviceCodeStore) Len() int {
	return s.byDeviceCode.Len()
}
