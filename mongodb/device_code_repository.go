package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pilab.hu/deviceauth"
)

var _ deviceauth.DeviceCodeStore = (*DeviceCodeRepository)(nil)

// DeviceCodeRepository implements deviceauth.DeviceCodeStore on MongoDB.
// Unique indexes on both codes make inserts atomic; a TTL index reclaims
// expired documents.
type DeviceCodeRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewDeviceCodeRepository creates a DeviceCodeRepository on db.
func NewDeviceCodeRepository(db *mongo.Database) *DeviceCodeRepository {
	return &DeviceCodeRepository{
		coll: db.Collection(DeviceCodesCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique code indexes and the expiry TTL index.
// InsertIfAbsent relies on them.
func (r *DeviceCodeRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "device_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create device code indexes: %w", err)
	}

	return nil
}

// GetByDeviceCode implements deviceauth.DeviceCodeStore.
func (r *DeviceCodeRepository) GetByDeviceCode(ctx context.Context, deviceCode string) (*deviceauth.DeviceCodeRecord, error) {
	return r.findLive(ctx, "device_code", deviceCode)
}

// GetByUserCode implements deviceauth.DeviceCodeStore.
func (r *DeviceCodeRepository) GetByUserCode(ctx context.Context, userCode string) (*deviceauth.DeviceCodeRecord, error) {
	return r.findLive(ctx, "user_code", userCode)
}

func (r *DeviceCodeRepository) findLive(ctx context.Context, field, code string) (*deviceauth.DeviceCodeRecord, error) {
	filter := bson.M{
		field:        code,
		"expires_at": bson.M{"$gt": r.now()},
	}

	var data deviceauth.DeviceCodeRecordData

	err := r.coll.FindOne(ctx, filter).Decode(&data)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, deviceauth.ErrRecordNotFound
		}

		return nil, err
	}

	return data.Record(), nil
}

// InsertIfAbsent implements deviceauth.DeviceCodeStore. The TTL monitor runs
// periodically, so a duplicate key may belong to an already expired document;
// those are removed and the insert is tried once more.
func (r *DeviceCodeRepository) InsertIfAbsent(ctx context.Context, record *deviceauth.DeviceCodeRecord) error {
	if record.Expired(r.now()) {
		return fmt.Errorf("device code record for %s has no remaining lifetime", record.ID)
	}

	data := record.Data()

	_, err := r.coll.InsertOne(ctx, data)
	if err == nil {
		return nil
	}

	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to insert device code: %w", err)
	}

	res, err := r.coll.DeleteMany(ctx, bson.M{
		"$or": []bson.M{
			{"device_code": record.DeviceCode},
			{"user_code": record.UserCode},
		},
		"expires_at": bson.M{"$lte": r.now()},
	})
	if err != nil {
		return fmt.Errorf("failed to clear expired device codes: %w", err)
	}

	if res.DeletedCount == 0 {
		return deviceauth.ErrCodeCollision
	}

	if _, err := r.coll.InsertOne(ctx, data); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return deviceauth.ErrCodeCollision
		}

		return fmt.Errorf("failed to insert device code: %w", err)
	}

	return nil
}

// DeleteExpired implements deviceauth.DeviceCodeStore.
func (r *DeviceCodeRepository) DeleteExpired(ctx context.Context) (int, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": r.now()}})
	if err != nil {
		return 0, err
	}

	return int(res.DeletedCount), nil
}
