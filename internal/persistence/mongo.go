package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/tasi-app/auth-service/internal/config"
)

// Collection names.
const (
	CollectionUsers     = "users"
	CollectionCustomers = "customers"
	CollectionCompanies = "companies"
	CollectionOTPCodes  = "otp_codes"
	CollectionUsedOTPs  = "used_otps"
)

// Mongo wraps the shared, pooled document store client.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// NewMongo connects and pings the document store.
func NewMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, errors.New("MONGO_URI not provided")
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout()))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("connected to mongo", zap.String("database", cfg.Database))
	return &Mongo{Client: client, DB: client.Database(cfg.Database)}, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) {
	if m != nil && m.Client != nil {
		_ = m.Client.Disconnect(ctx)
	}
}

// Ping verifies document store connectivity.
func (m *Mongo) Ping(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return errors.New("mongo client not configured")
	}
	return m.Client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the unique email indexes, phone lookup indexes and the OTP TTL index.
// retention is how long a code survives past expires_at before the server deletes it.
func (m *Mongo) EnsureIndexes(ctx context.Context, retention time.Duration, logger *zap.Logger) error {
	for _, name := range []string{CollectionUsers, CollectionCustomers, CollectionCompanies} {
		_, err := m.DB.Collection(name).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "phone", Value: 1}}},
		})
		if err != nil {
			return err
		}
	}

	_, err := m.DB.Collection(CollectionOTPCodes).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "phone", Value: 1}, {Key: "code", Value: 1}, {Key: "consumed", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		},
	})
	if err != nil {
		return err
	}

	logger.Info("mongo indexes ensured", zap.Duration("otp_retention", retention))
	return nil
}
