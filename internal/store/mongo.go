package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pwreset/internal/models"
)

// MongoStore is a UserStore backed by a MongoDB collection carrying the
// indexes from database.UserIndexes.
type MongoStore struct {
	col     *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

var _ UserStore = (*MongoStore)(nil)

// NewMongoStore wraps col. Each operation is bounded by a 5 second timeout.
func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col, timeout: 5 * time.Second, now: time.Now}
}

func (s *MongoStore) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	doc := *u
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	*u = doc
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"reset_token": token})
}

func (s *MongoStore) SetResetToken(ctx context.Context, id primitive.ObjectID, token string, expiry time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"reset_token":  token,
			"reset_expiry": expiry.UTC(),
			"updated_at":   s.now().UTC(),
		},
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ClearExpiredResetToken(ctx context.Context, token string, now time.Time) error {
	if token == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{
		"reset_token":  token,
		"reset_expiry": bson.M{"$lt": now.UTC()},
	}
	update := bson.M{
		"$set":   bson.M{"updated_at": s.now().UTC()},
		"$unset": bson.M{"reset_token": "", "reset_expiry": ""},
	}
	if _, err := s.col.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to clear expired reset token: %w", err)
	}
	return nil
}

func (s *MongoStore) ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{
		"reset_token":  token,
		"reset_expiry": bson.M{"$gte": now.UTC()},
	}
	update := bson.M{
		"$set": bson.M{
			"password_hash": passwordHash,
			"updated_at":    s.now().UTC(),
		},
		"$unset": bson.M{"reset_token": "", "reset_expiry": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return &user, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user models.User
	if err := s.col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return &user, nil
}
