package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	UserName     string        `bson:"username"`
	Email        string        `bson:"email"`
	FullName     string        `bson:"fullname"`
	Avatar       string        `bson:"avatar"`
	CoverImage   string        `bson:"coverImage"`
	PasswordHash string        `bson:"passwordHash"`
	RefreshToken string        `bson:"refreshToken"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

func newUserDocument(u *models.User) userDocument {
	return userDocument{
		UserName:     strings.ToLower(u.UserName),
		Email:        strings.ToLower(u.Email),
		FullName:     u.FullName,
		Avatar:       u.Avatar,
		CoverImage:   u.CoverImage,
		PasswordHash: u.PasswordHash,
		RefreshToken: u.RefreshToken,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d *userDocument) model() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		UserName:     d.UserName,
		Email:        d.Email,
		FullName:     d.FullName,
		Avatar:       d.Avatar,
		CoverImage:   d.CoverImage,
		PasswordHash: d.PasswordHash,
		RefreshToken: d.RefreshToken,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// fieldsUpdate builds the $set document for f. Email is stored lowercase so
// the unique index also covers case variants.
func fieldsUpdate(f models.UserFields, now time.Time) bson.D {
	set := bson.D{}
	if f.FullName != nil {
		set = append(set, bson.E{Key: "fullname", Value: *f.FullName})
	}
	if f.Email != nil {
		set = append(set, bson.E{Key: "email", Value: strings.ToLower(*f.Email)})
	}
	if f.Avatar != nil {
		set = append(set, bson.E{Key: "avatar", Value: *f.Avatar})
	}
	if f.CoverImage != nil {
		set = append(set, bson.E{Key: "coverImage", Value: *f.CoverImage})
	}
	if f.PasswordHash != nil {
		set = append(set, bson.E{Key: "passwordHash", Value: *f.PasswordHash})
	}
	set = append(set, bson.E{Key: "updatedAt", Value: now})
	return bson.D{{Key: "$set", Value: set}}
}

func identityFilter(userName, email string) bson.D {
	or := bson.A{}
	if userName != "" {
		or = append(or, bson.D{{Key: "username", Value: strings.ToLower(userName)}})
	}
	if email != "" {
		or = append(or, bson.D{{Key: "email", Value: strings.ToLower(email)}})
	}
	return bson.D{{Key: "$or", Value: or}}
}

// MongoRepository stores users as documents of the "users" collection.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(usersCollection), now: time.Now}
}

// EnsureIndexes creates the unique username and email indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "fullname", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func mapMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return common.ErrorNotFound
	case mongo.IsDuplicateKeyError(err):
		return common.ErrorAlreadyExists
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func (r *MongoRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := r.now().UTC()
	doc := newUserDocument(user)
	doc.ID = bson.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, mapMongoError(err)
	}

	return doc.model(), nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter any) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.model(), nil
}

func (r *MongoRepository) FindByUserNameOrEmail(ctx context.Context, userName, email string) (*models.User, error) {
	if userName == "" && email == "" {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, identityFilter(userName, email))
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoRepository) UpdateFields(ctx context.Context, id string, f models.UserFields) (*models.User, error) {
	if f.Empty() {
		return r.FindByID(ctx, id)
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}

	var doc userDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		fieldsUpdate(f, r.now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return doc.model(), nil
}

func (r *MongoRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refreshToken", Value: token},
			{Key: "updatedAt", Value: r.now().UTC()},
		}}},
	)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// RotateRefreshToken relies on single-document atomicity: the update only
// applies while the stored token still equals expected.
func (r *MongoRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}
	if expected == "" {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return common.ErrTokenMismatch
	}

	err = r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "refreshToken", Value: expected}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refreshToken", Value: next},
			{Key: "updatedAt", Value: r.now().UTC()},
		}}},
	).Err()
	if err == nil {
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return mapMongoError(err)
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return common.ErrTokenMismatch
}
