package deviceauth

import "context"

// DeviceCodeStore persists issued device codes. Implementations must make
// InsertIfAbsent atomic across both codes and must report expired records as
// ErrRecordNotFound even before they are purged.
type DeviceCodeStore interface {
	// GetByDeviceCode returns the live record for deviceCode or ErrRecordNotFound.
	GetByDeviceCode(ctx context.Context, deviceCode string) (*DeviceCodeRecord, error)
	// GetByUserCode returns the live record for userCode or ErrRecordNotFound.
	GetByUserCode(ctx context.Context, userCode string) (*DeviceCodeRecord, error)
	// InsertIfAbsent stores record unless its device code or user code already
	// belongs to a live record, in which case it returns ErrCodeCollision.
	InsertIfAbsent(ctx context.Context, record *DeviceCodeRecord) error
	// DeleteExpired purges expired records and returns how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}
