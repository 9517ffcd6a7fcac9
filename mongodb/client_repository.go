package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pilab.hu/deviceauth/client"
)

var _ client.Registry = (*ClientRepository)(nil)

// ClientRepository is a client.Registry backed by MongoDB.
type ClientRepository struct {
	coll *mongo.Collection
}

// NewClientRepository creates a ClientRepository on db.
func NewClientRepository(db *mongo.Database) *ClientRepository {
	return &ClientRepository{coll: db.Collection(ClientsCollection)}
}

// EnsureIndexes creates the unique client id index.
func (s *ClientRepository) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "client_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create client index: %w", err)
	}

	return nil
}

// GetClient implements client.Registry.
func (s *ClientRepository) GetClient(ctx context.Context, clientID string) (*client.Client, error) {
	var cli client.Client

	err := s.coll.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&cli)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, client.ErrClientNotFound
		}

		return nil, err
	}

	return &cli, nil
}

// UpsertClient creates or replaces a client keyed by its id.
func (s *ClientRepository) UpsertClient(ctx context.Context, c *client.Client) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}

	c.UpdatedAt = now

	_, err := s.coll.ReplaceOne(ctx, bson.M{"client_id": c.ID}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert client %s: %w", c.ID, err)
	}

	return nil
}
