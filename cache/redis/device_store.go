package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/deviceauth"
	"go.pilab.hu/deviceauth/cache"
)

var _ deviceauth.DeviceCodeStore = (*DeviceCodeStore)(nil)

// insertIfAbsent sets both code keys only when neither exists.
// KEYS[1] device code key, KEYS[2] user code key, ARGV[1] record, ARGV[2] ttl in ms.
var insertIfAbsent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 or redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
return 1
`)

// DeviceCodeStore implements deviceauth.DeviceCodeStore on Redis. Both lookup
// paths hold a copy of the record and share its expiry.
type DeviceCodeStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewDeviceCodeStore creates a [DeviceCodeStore] with keys under prefix.
func NewDeviceCodeStore(client redis.UniversalClient, prefix string) *DeviceCodeStore {
	return &DeviceCodeStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *DeviceCodeStore) deviceKey(deviceCode string) string {
	return fmt.Sprintf("%s:device_code:%s", r.prefix, cache.HashCode(deviceCode))
}

func (r *DeviceCodeStore) userKey(userCode string) string {
	return fmt.Sprintf("%s:user_code:%s", r.prefix, cache.HashCode(userCode))
}

// GetByDeviceCode implements deviceauth.DeviceCodeStore.
func (r *DeviceCodeStore) GetByDeviceCode(ctx context.Context, deviceCode string) (*deviceauth.DeviceCodeRecord, error) {
	return r.get(ctx, r.deviceKey(deviceCode))
}

// GetByUserCode implements deviceauth.DeviceCodeStore.
func (r *DeviceCodeStore) GetByUserCode(ctx context.Context, userCode string) (*deviceauth.DeviceCodeRecord, error) {
	return r.get(ctx, r.userKey(userCode))
}

func (r *DeviceCodeStore) get(ctx context.Context, key string) (*deviceauth.DeviceCodeRecord, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, deviceauth.ErrRecordNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get device code from Redis: %w", err)
	}

	var data deviceauth.DeviceCodeRecordData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device code record: %w", err)
	}

	record := data.Record()
	if record.Expired(r.now()) {
		return nil, deviceauth.ErrRecordNotFound
	}

	return record, nil
}

// InsertIfAbsent implements deviceauth.DeviceCodeStore.
func (r *DeviceCodeStore) InsertIfAbsent(ctx context.Context, record *deviceauth.DeviceCodeRecord) error {
	ttl := record.TTL(r.now())
	if ttl < time.Millisecond {
		return fmt.Errorf("device code record for %s has no remaining lifetime", record.ID)
	}

	payload, err := json.Marshal(record.Data())
	if err != nil {
		return fmt.Errorf("failed to marshal device code record: %w", err)
	}

	keys := []string{r.deviceKey(record.DeviceCode), r.userKey(record.UserCode)}

	inserted, err := insertIfAbsent.Run(ctx, r.client, keys, payload, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to store device code in Redis: %w", err)
	}

	if inserted == 0 {
		return deviceauth.ErrCodeCollision
	}

	return nil
}

// DeleteExpired removes records whose expiry has passed but whose keys are
// still present, which only happens when clocks disagree with Redis.
func (r *DeviceCodeStore) DeleteExpired(ctx context.Context) (int, error) {
	var (
		deleted int
		cursor  uint64
	)

	pattern := r.prefix + ":device_code:*"
	now := r.now()

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan device codes: %w", err)
		}

		for _, key := range keys {
			raw, err := r.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue // expired in the meantime
			} else if err != nil {
				return deleted, fmt.Errorf("failed to get device code %s: %w", key, err)
			}

			var data deviceauth.DeviceCodeRecordData
			if err := json.Unmarshal(raw, &data); err != nil {
				continue
			}

			if !data.Record().Expired(now) {
				continue
			}

			n, err := r.client.Del(ctx, key, r.userKey(data.UserCode)).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete device code %s: %w", key, err)
			}

			if n > 0 {
				deleted++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
