package deviceauth

import "time"

// DeviceCodeStatus represents the approval state of a device authorization.
// It is driven by the verification endpoint; issuance only ever writes pending.
type DeviceCodeStatus string

const (
	DeviceCodeStatusPending  DeviceCodeStatus = "pending"
	DeviceCodeStatusApproved DeviceCodeStatus = "approved"
	DeviceCodeStatusDenied   DeviceCodeStatus = "denied"
)

// DeviceCodeRecord is the persisted unit of the issuer. DeviceCode and UserCode
// are each unique among live records and map one-to-one.
type DeviceCodeRecord struct {
	ID         string
	DeviceCode string
	UserCode   string
	Request    *AuthorizationRequest
	Status     DeviceCodeStatus
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the record is no longer live at now.
func (r *DeviceCodeRecord) Expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}

	return !now.Before(r.ExpiresAt)
}

// TTL returns the remaining lifetime at now, never negative.
func (r *DeviceCodeRecord) TTL(now time.Time) time.Duration {
	ttl := r.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}

	return ttl
}

// DeviceCodeRecordData is the storable form of a DeviceCodeRecord.
type DeviceCodeRecordData struct {
	ID         string                   `json:"id"          bson:"_id"`
	DeviceCode string                   `json:"device_code" bson:"device_code"`
	UserCode   string                   `json:"user_code"   bson:"user_code"`
	Request    AuthorizationRequestData `json:"request"     bson:"request"`
	Status     DeviceCodeStatus         `json:"status"      bson:"status"`
	IssuedAt   time.Time                `json:"issued_at"   bson:"issued_at"`
	ExpiresAt  time.Time                `json:"expires_at"  bson:"expires_at"`
}

// Data returns the storable form of r.
func (r *DeviceCodeRecord) Data() DeviceCodeRecordData {
	d := DeviceCodeRecordData{
		ID:         r.ID,
		DeviceCode: r.DeviceCode,
		UserCode:   r.UserCode,
		Status:     r.Status,
		IssuedAt:   r.IssuedAt,
		ExpiresAt:  r.ExpiresAt,
	}

	if r.Request != nil {
		d.Request = r.Request.Data()
	}

	return d
}

// Record rebuilds the DeviceCodeRecord held by d.
func (d DeviceCodeRecordData) Record() *DeviceCodeRecord {
	return &DeviceCodeRecord{
		ID:         d.ID,
		DeviceCode: d.DeviceCode,
		UserCode:   d.UserCode,
		Request:    d.Request.Request(),
		Status:     d.Status,
		IssuedAt:   d.IssuedAt,
		ExpiresAt:  d.ExpiresAt,
	}
}
