package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/persistence"
)

// OneTimeCodeRepository manages one-time code persistence.
type OneTimeCodeRepository interface {
	Create(ctx context.Context, code *domain.OneTimeCode) error
	// Consume atomically flips the newest unconsumed, unexpired code matching phone and code to
	// consumed and returns it. ErrNotFound when nothing matched.
	Consume(ctx context.Context, phone, code string, now time.Time) (*domain.OneTimeCode, error)
	// RecordUse writes the used-code marker.
	RecordUse(ctx context.Context, code *domain.OneTimeCode) error
}

type oneTimeCodeDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	AccountID  string             `bson:"account_id"`
	Partition  string             `bson:"partition"`
	Phone      string             `bson:"phone"`
	Code       string             `bson:"code"`
	ExpiresAt  time.Time          `bson:"expires_at"`
	Consumed   bool               `bson:"consumed"`
	ConsumedAt *time.Time         `bson:"consumed_at,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}

type usedCodeDocument struct {
	CodeID    primitive.ObjectID `bson:"code_id"`
	AccountID string             `bson:"account_id"`
	Phone     string             `bson:"phone"`
	UsedAt    time.Time          `bson:"used_at"`
}

type oneTimeCodeRepository struct {
	codes *mongo.Collection
	used  *mongo.Collection
}

// NewOneTimeCodeRepository constructs repository.
func NewOneTimeCodeRepository(db *mongo.Database) OneTimeCodeRepository {
	return &oneTimeCodeRepository{
		codes: db.Collection(persistence.CollectionOTPCodes),
		used:  db.Collection(persistence.CollectionUsedOTPs),
	}
}

func (r *oneTimeCodeRepository) Create(ctx context.Context, code *domain.OneTimeCode) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	doc := oneTimeCodeDocument{
		AccountID: code.AccountID,
		Partition: string(code.Partition),
		Phone:     code.Phone,
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt.UTC(),
		CreatedAt: code.CreatedAt.UTC(),
	}
	res, err := r.codes.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		code.ID = oid.Hex()
	}
	return nil
}

func (r *oneTimeCodeRepository) Consume(ctx context.Context, phone, code string, now time.Time) (*domain.OneTimeCode, error) {
	now = now.UTC()
	filter := bson.M{
		"phone":      phone,
		"code":       code,
		"consumed":   false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"consumed": true, "consumed_at": now}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetReturnDocument(options.After)

	var doc oneTimeCodeDocument
	if err := r.codes.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &domain.OneTimeCode{
		ID:         doc.ID.Hex(),
		AccountID:  doc.AccountID,
		Partition:  domain.Partition(doc.Partition),
		Phone:      doc.Phone,
		Code:       doc.Code,
		ExpiresAt:  doc.ExpiresAt,
		Consumed:   doc.Consumed,
		ConsumedAt: doc.ConsumedAt,
		CreatedAt:  doc.CreatedAt,
	}, nil
}

func (r *oneTimeCodeRepository) RecordUse(ctx context.Context, code *domain.OneTimeCode) error {
	oid, err := primitive.ObjectIDFromHex(code.ID)
	if err != nil {
		return err
	}
	usedAt := time.Now().UTC()
	if code.ConsumedAt != nil {
		usedAt = code.ConsumedAt.UTC()
	}
	_, err = r.used.InsertOne(ctx, usedCodeDocument{
		CodeID:    oid,
		AccountID: code.AccountID,
		Phone:     code.Phone,
		UsedAt:    usedAt,
	})
	return err
}
