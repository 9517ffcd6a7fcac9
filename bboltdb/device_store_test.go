package bboltdb

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/deviceauth"
)

func setupTestStore(t *testing.T, now *time.Time) (*DeviceCodeStore, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "bbolt_device_test_")
	require.NoError(t, err)

	store, err := Open(filepath.Join(tempDir, "device.db"), WithClock(func() time.Time { return *now }))
	require.NoError(t, err)

	return store, func() {
		assert.NoError(t, store.Close())
		os.RemoveAll(tempDir)
	}
}

func testRecord(deviceCode, userCode string, issued time.Time) *deviceauth.DeviceCodeRecord {
	return &deviceauth.DeviceCodeRecord{
		ID:         deviceCode + "-id",
		DeviceCode: deviceCode,
		UserCode:   userCode,
		Request:    deviceauth.NewAuthorizationRequest("tv-app", map[string]string{"scope": "read"}),
		Status:     deviceauth.DeviceCodeStatusPending,
		IssuedAt:   issued,
		ExpiresAt:  issued.Add(10 * time.Minute),
	}
}

func TestDeviceCodeStore_InsertAndLookup(t *testing.T) {
	now := time.Date(2025, 1, 3, 3, 8, 6, 0, time.UTC)
	store, cleanup := setupTestStore(t, &now)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, testRecord("dev-1", "BCDF-GHJK", now)))

	got, err := store.GetByDeviceCode(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "BCDF-GHJK", got.UserCode)
	assert.Equal(t, "tv-app", got.Request.ClientID())
	assert.Equal(t, map[string]string{"scope": "read"}, got.Request.RequestParameters())
	assert.True(t, got.ExpiresAt.Equal(now.Add(10*time.Minute)))

	got, err = store.GetByUserCode(ctx, "BCDF-GHJK")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", got.DeviceCode)

	_, err = store.GetByUserCode(ctx, "ZZZZ-ZZZZ")
	assert.ErrorIs(t, err, deviceauth.ErrRecordNotFound)
}

func TestDeviceCodeStore_Collision(t *testing.T) {
	now := time.Now()
	store, cleanup := setupTestStore(t, &now)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, testRecord("dev-1", "BCDF-GHJK", now)))

	assert.ErrorIs(t, store.InsertIfAbsent(ctx, testRecord("dev-1", "LMNP-QRST", now)), deviceauth.ErrCodeCollision)
	assert.ErrorIs(t, store.InsertIfAbsent(ctx, testRecord("dev-2", "BCDF-GHJK", now)), deviceauth.ErrCodeCollision)

	_, err := store.GetByUserCode(ctx, "LMNP-QRST")
	assert.ErrorIs(t, err, deviceauth.ErrRecordNotFound)
}

func TestDeviceCodeStore_ExpiryAndSweep(t *testing.T) {
	now := time.Now()
	store, cleanup := setupTestStore(t, &now)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, testRecord("dev-1", "BCDF-GHJK", now)))
	require.NoError(t, store.InsertIfAbsent(ctx, testRecord("dev-2", "LMNP-QRST", now.Add(5*time.Minute))))

	now = now.Add(10 * time.Minute)

	_, err := store.GetByDeviceCode(ctx, "dev-1")
	assert.ErrorIs(t, err, deviceauth.ErrRecordNotFound)
	_, err = store.GetByUserCode(ctx, "BCDF-GHJK")
	assert.ErrorIs(t, err, deviceauth.ErrRecordNotFound)

	// The expired device code can be reused with a new user code without the
	// old user code resolving to the new record.
	require.NoError(t, store.InsertIfAbsent(ctx, testRecord("dev-1", "VWXZ-2345", now)))
	_, err = store.GetByUserCode(ctx, "BCDF-GHJK")
	assert.ErrorIs(t, err, deviceauth.ErrRecordNotFound)

	now = now.Add(6 * time.Minute)

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetByUserCode(ctx, "VWXZ-2345")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", got.DeviceCode)
}

func TestDeviceCodeStore_RejectsExpiredRecord(t *testing.T) {
	now := time.Now().Add(time.Hour)
	store, cleanup := setupTestStore(t, &now)
	defer cleanup()

	ctx := context.Background()

	_, _, err := deviceauth.NewIssuer(store).Issue(ctx, deviceauth.NewAuthorizationRequest("tv-app", nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, deviceauth.ErrCodeCollision)

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeviceCodeStore_ConcurrentIssuance(t *testing.T) {
	now := time.Now()
	store, cleanup := setupTestStore(t, &now)
	defer cleanup()

	issuer := deviceauth.NewIssuer(store, deviceauth.WithClock(func() time.Time { return now }))
	req := deviceauth.NewAuthorizationRequest("tv-app", nil)

	const workers = 200

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]string, workers)
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			userCode, deviceCode, err := issuer.Issue(context.Background(), req)
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			codes[userCode] = deviceCode
			mu.Unlock()
		}()
	}

	wg.Wait()
	require.Len(t, codes, workers)

	for userCode, deviceCode := range codes {
		got, err := store.GetByUserCode(context.Background(), userCode)
		require.NoError(t, err)
		assert.Equal(t, deviceCode, got.DeviceCode)
	}
}
