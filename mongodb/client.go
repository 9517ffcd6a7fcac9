package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

var (
	mu             sync.Mutex
	clientInstance *mongo.Client
	dbInstance     *mongo.Database
)

// InitMongoDB connects the shared MongoDB client and selects dbName.
// It should be called once at application startup; later calls are no-ops.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	mu.Lock()
	defer mu.Unlock()

	if dbInstance != nil {
		return nil
	}

	log.Info().Msg("Initializing MongoDB client")

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetConnectTimeout(10 * time.Second)
	clientOptions.SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	log.Info().Msgf("Using MongoDB database: %s", dbName)

	clientInstance = client
	dbInstance = client.Database(dbName)

	return nil
}

// GetDB returns the database selected by InitMongoDB, or nil before it succeeded.
func GetDB() *mongo.Database {
	mu.Lock()
	defer mu.Unlock()

	return dbInstance
}

// Ping checks the shared client against the primary. Used by health checks.
func Ping(ctx context.Context) error {
	mu.Lock()
	c := clientInstance
	mu.Unlock()

	if c == nil {
		return errors.New("mongodb client is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return c.Ping(pingCtx, readpref.Primary())
}

// CloseMongoDB disconnects the shared client. It should be called on shutdown.
func CloseMongoDB(ctx context.Context) {
	mu.Lock()
	defer mu.Unlock()

	if clientInstance == nil {
		return
	}

	log.Info().Msg("Closing MongoDB connection.")

	if err := clientInstance.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing MongoDB connection")
	}

	clientInstance = nil
	dbInstance = nil
}
