package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"identity-service/internal/models"
	"identity-service/internal/repository"
	"identity-service/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type AccountRepository struct {
	client     *MongoClient
	collection *mongo.Collection
	encryptor  FieldEncryptor
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository stores accounts in the named collection. encryptor
// may be nil, in which case phone numbers are stored in clear.
func NewAccountRepository(client *MongoClient, collection string, encryptor FieldEncryptor) *AccountRepository {
	return &AccountRepository{
		client:     client,
		collection: client.Collection(collection),
		encryptor:  encryptor,
	}
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var doc accountDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrAccountNotFound
		}
		util.Error("Failed to find account", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	return fromDocument(ctx, r.encryptor, &doc)
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}

	doc, err := toDocument(ctx, r.encryptor, account)
	if err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateEmail
		}
		util.Error("Failed to create account",
			zap.String("account_id", account.IDHex()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}

	account.SealedPhone = doc.PhoneEncrypted

	util.Debug("Account created", zap.String("account_id", account.IDHex()))
	return nil
}

func (r *AccountRepository) Save(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now().UTC()

	doc, err := toDocument(ctx, r.encryptor, account)
	if err != nil {
		return err
	}

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": account.ID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateEmail
		}
		util.Error("Failed to save account",
			zap.String("account_id", account.IDHex()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrAccountNotFound
	}
	account.SealedPhone = doc.PhoneEncrypted
	return nil
}

// ConsumeOTP is a single conditional update, so concurrent verifications of
// the same code cannot both succeed.
func (r *AccountRepository) ConsumeOTP(ctx context.Context, id string, code int, now time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	filter := bson.M{
		"_id":        oid,
		"otp":        code,
		"otpExpires": bson.M{"$gte": now},
	}
	update := bson.M{
		"$set": bson.M{
			"otp":             nil,
			"otpExpires":      nil,
			"isOtpVerified":   true,
			"isEmailVerified": true,
			"updatedAt":       now.UTC(),
		},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		util.Error("Failed to consume otp",
			zap.String("account_id", id),
			zap.Error(err))
		return false, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *AccountRepository) List(ctx context.Context, skip, limit int64) ([]*models.Account, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	accounts := make([]*models.Account, 0)
	for cursor.Next(ctx) {
		var doc accountDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
		}
		a, err := fromDocument(ctx, r.encryptor, &doc)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	return accounts, nil
}

func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	return n, nil
}

func (r *AccountRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

func (r *AccountRepository) Close(ctx context.Context) error {
	return r.client.Close(ctx)
}
