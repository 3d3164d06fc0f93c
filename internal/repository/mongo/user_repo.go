// Package mongo is the MongoDB user store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/pkg/auth"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

type userDocument struct {
	ID                      bson.ObjectID `bson:"_id,omitempty"`
	Name                    string        `bson:"name"`
	Email                   string        `bson:"email"`
	PasswordHash            string        `bson:"password"`
	Role                    string        `bson:"role"`
	OpenAIAPIKey            string        `bson:"openaiApiKey,omitempty"`
	GroqAPIKey              string        `bson:"groqApiKey,omitempty"`
	PreferredSourceLanguage string        `bson:"preferredSourceLanguage"`
	PreferredTargetLanguage string        `bson:"preferredTargetLanguage"`
	TranslationCount        int           `bson:"translationCount"`
	IsActive                bool          `bson:"isActive"`
	LastLogin               *time.Time    `bson:"lastLogin,omitempty"`
	CreatedAt               time.Time     `bson:"createdAt"`
	UpdatedAt               time.Time     `bson:"updatedAt"`
}

var apiKeyFields = map[domain.Provider]string{
	domain.ProviderOpenAI: "openaiApiKey",
	domain.ProviderGroq:   "groqApiKey",
}

func (d *userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:                      d.ID.Hex(),
		Name:                    d.Name,
		Email:                   d.Email,
		PasswordHash:            d.PasswordHash,
		Role:                    domain.Role(d.Role),
		PreferredSourceLanguage: d.PreferredSourceLanguage,
		PreferredTargetLanguage: d.PreferredTargetLanguage,
		TranslationCount:        d.TranslationCount,
		IsActive:                d.IsActive,
		LastLogin:               d.LastLogin,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}
	keys := map[domain.Provider]string{}
	if d.OpenAIAPIKey != "" {
		keys[domain.ProviderOpenAI] = d.OpenAIAPIKey
	}
	if d.GroqAPIKey != "" {
		keys[domain.ProviderGroq] = d.GroqAPIKey
	}
	if len(keys) > 0 {
		u.APIKeys = keys
	}
	return u
}

// updateDocument turns a UserUpdate into a $set/$unset/$inc document.
// Password must already be hashed by the caller.
func updateDocument(upd domain.UserUpdate, passwordHash string, now time.Time) bson.D {
	set := bson.D{}
	unset := bson.D{}

	if upd.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *upd.Name})
	}
	if upd.PreferredSourceLanguage != nil {
		set = append(set, bson.E{Key: "preferredSourceLanguage", Value: *upd.PreferredSourceLanguage})
	}
	if upd.PreferredTargetLanguage != nil {
		set = append(set, bson.E{Key: "preferredTargetLanguage", Value: *upd.PreferredTargetLanguage})
	}
	if passwordHash != "" {
		set = append(set, bson.E{Key: "password", Value: passwordHash})
	}
	if upd.IsActive != nil {
		set = append(set, bson.E{Key: "isActive", Value: *upd.IsActive})
	}
	if upd.LastLogin != nil {
		set = append(set, bson.E{Key: "lastLogin", Value: *upd.LastLogin})
	}
	for _, p := range domain.Providers {
		envelope, ok := upd.APIKeys[p]
		if !ok {
			continue
		}
		if envelope == "" {
			unset = append(unset, bson.E{Key: apiKeyFields[p], Value: ""})
		} else {
			set = append(set, bson.E{Key: apiKeyFields[p], Value: envelope})
		}
	}
	set = append(set, bson.E{Key: "updatedAt", Value: now})

	doc := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		doc = append(doc, bson.E{Key: "$unset", Value: unset})
	}
	if upd.TranslationCountDelta != 0 {
		doc = append(doc, bson.E{Key: "$inc", Value: bson.D{{Key: "translationCount", Value: upd.TranslationCountDelta}}})
	}
	return doc
}

type UserRepo struct {
	users      *mongo.Collection
	bcryptCost int
}

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to reach mongo: %w", err)
	}
	return client, nil
}

// NewUserRepo ensures the unique email index exists.
func NewUserRepo(ctx context.Context, db *mongo.Database, bcryptCost int) (*UserRepo, error) {
	users := db.Collection(usersCollection)
	_, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create email index: %w", err)
	}
	return &UserRepo{users: users, bcryptCost: bcryptCost}, nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.D) (*domain.User, error) {
	var doc userDocument
	err := r.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: domain.NormalizeEmail(email)}})
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User, password string) error {
	hash, err := auth.HashPassword(password, r.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	doc := userDocument{
		ID:                      bson.NewObjectID(),
		Name:                    user.Name,
		Email:                   domain.NormalizeEmail(user.Email),
		PasswordHash:            hash,
		Role:                    string(domain.RoleUser),
		PreferredSourceLanguage: domain.DefaultSourceLanguage,
		PreferredTargetLanguage: domain.DefaultTargetLanguage,
		IsActive:                true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if user.Role != "" {
		doc.Role = string(user.Role)
	}
	if user.PreferredSourceLanguage != "" {
		doc.PreferredSourceLanguage = user.PreferredSourceLanguage
	}
	if user.PreferredTargetLanguage != "" {
		doc.PreferredTargetLanguage = user.PreferredTargetLanguage
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	*user = *doc.toDomain()
	return nil
}

func (r *UserRepo) Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	var hash string
	if upd.Password != nil {
		if hash, err = auth.HashPassword(*upd.Password, r.bcryptCost); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	var doc userDocument
	err = r.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		updateDocument(upd, hash, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepo) ComparePassword(_ context.Context, user *domain.User, plain string) bool {
	return auth.CheckPasswordHash(plain, user.PasswordHash)
}
