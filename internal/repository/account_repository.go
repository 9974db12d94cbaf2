package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/persistence"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique index rejects an insert.
	ErrDuplicate = errors.New("duplicate")
)

// AccountRepository defines persistence access for accounts across partitions.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, partition domain.Partition, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, partition domain.Partition, email string) (*domain.Account, error)
	GetByPhone(ctx context.Context, partition domain.Partition, phone string) (*domain.Account, error)
	UpdateStatus(ctx context.Context, partition domain.Partition, id string, status domain.AccountStatus) error
	UpdateRoles(ctx context.Context, partition domain.Partition, id string, roles []domain.Role) error
	TouchLastLogin(ctx context.Context, partition domain.Partition, id string, at time.Time) error
}

type accountDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Name         string             `bson:"name"`
	Phone        string             `bson:"phone,omitempty"`
	Roles        []string           `bson:"roles"`
	Status       string             `bson:"status"`
	CompanyName  string             `bson:"company_name,omitempty"`
	TaxNumber    string             `bson:"tax_number,omitempty"`
	Address      string             `bson:"address,omitempty"`
	LastLoginAt  *time.Time         `bson:"last_login_at,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

type accountRepository struct {
	db *mongo.Database
}

// NewAccountRepository returns a Mongo-backed implementation.
func NewAccountRepository(db *mongo.Database) AccountRepository {
	return &accountRepository{db: db}
}

// CollectionFor maps a partition to its collection name.
func CollectionFor(p domain.Partition) (string, error) {
	switch p {
	case domain.PartitionUser:
		return persistence.CollectionUsers, nil
	case domain.PartitionCustomer:
		return persistence.CollectionCustomers, nil
	case domain.PartitionCompany:
		return persistence.CollectionCompanies, nil
	}
	return "", fmt.Errorf("unknown partition %q", p)
}

func (r *accountRepository) collection(p domain.Partition) (*mongo.Collection, error) {
	name, err := CollectionFor(p)
	if err != nil {
		return nil, err
	}
	return r.db.Collection(name), nil
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	coll, err := r.collection(account.Partition)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	doc := toAccountDocument(account)
	doc.CreatedAt, doc.UpdatedAt = now, now

	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		account.ID = oid.Hex()
	}
	account.CreatedAt, account.UpdatedAt = now, now
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, partition domain.Partition, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, partition, bson.M{"_id": oid}, nil)
}

func (r *accountRepository) GetByEmail(ctx context.Context, partition domain.Partition, email string) (*domain.Account, error) {
	return r.findOne(ctx, partition, bson.M{"email": domain.NormalizeEmail(email)}, nil)
}

func (r *accountRepository) GetByPhone(ctx context.Context, partition domain.Partition, phone string) (*domain.Account, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findOne(ctx, partition, bson.M{"phone": domain.NormalizePhone(phone)}, opts)
}

func (r *accountRepository) UpdateStatus(ctx context.Context, partition domain.Partition, id string, status domain.AccountStatus) error {
	return r.updateOne(ctx, partition, id, bson.M{"status": string(status)})
}

func (r *accountRepository) UpdateRoles(ctx context.Context, partition domain.Partition, id string, roles []domain.Role) error {
	return r.updateOne(ctx, partition, id, bson.M{"roles": domain.RoleStrings(roles)})
}

func (r *accountRepository) TouchLastLogin(ctx context.Context, partition domain.Partition, id string, at time.Time) error {
	return r.updateOne(ctx, partition, id, bson.M{"last_login_at": at.UTC()})
}

func (r *accountRepository) findOne(ctx context.Context, partition domain.Partition, filter bson.M, opts *options.FindOneOptions) (*domain.Account, error) {
	coll, err := r.collection(partition)
	if err != nil {
		return nil, err
	}

	var doc accountDocument
	var res *mongo.SingleResult
	if opts != nil {
		res = coll.FindOne(ctx, filter, opts)
	} else {
		res = coll.FindOne(ctx, filter)
	}
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromAccountDocument(partition, &doc), nil
}

func (r *accountRepository) updateOne(ctx context.Context, partition domain.Partition, id string, set bson.M) error {
	coll, err := r.collection(partition)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	set["updated_at"] = time.Now().UTC()
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func toAccountDocument(a *domain.Account) *accountDocument {
	doc := &accountDocument{
		Email:        domain.NormalizeEmail(a.Email),
		PasswordHash: a.PasswordHash,
		Name:         a.Name,
		Phone:        domain.NormalizePhone(a.Phone),
		Roles:        domain.RoleStrings(a.Roles),
		Status:       string(a.Status),
		CompanyName:  a.Profile.CompanyName,
		TaxNumber:    a.Profile.TaxNumber,
		Address:      a.Profile.Address,
		LastLoginAt:  a.LastLoginAt,
	}
	if oid, err := primitive.ObjectIDFromHex(a.ID); err == nil {
		doc.ID = oid
	}
	return doc
}

func fromAccountDocument(p domain.Partition, doc *accountDocument) *domain.Account {
	roles := make([]domain.Role, len(doc.Roles))
	for i, r := range doc.Roles {
		roles[i] = domain.Role(r)
	}
	return &domain.Account{
		ID:           doc.ID.Hex(),
		Partition:    p,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Name:         doc.Name,
		Phone:        doc.Phone,
		Roles:        roles,
		Status:       domain.AccountStatus(doc.Status),
		Profile: domain.Profile{
			CompanyName: doc.CompanyName,
			TaxNumber:   doc.TaxNumber,
			Address:     doc.Address,
		},
		LastLoginAt: doc.LastLoginAt,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
