package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const translationsCollection = "translations"

type translationDocument struct {
	ID               bson.ObjectID `bson:"_id,omitempty"`
	UserID           bson.ObjectID `bson:"userId"`
	OriginalText     string        `bson:"originalText"`
	TranslatedText   string        `bson:"translatedText"`
	SourceLanguage   string        `bson:"sourceLanguage"`
	DetectedLanguage *string       `bson:"detectedLanguage"`
	TargetLanguage   string        `bson:"targetLanguage"`
	Duration         *float64      `bson:"duration"`
	InputType        string        `bson:"inputType"`
	Provider         string        `bson:"provider"`
	Confidence       *float64      `bson:"confidence"`
	CreatedAt        time.Time     `bson:"createdAt"`
}

func newTranslationDocument(t *domain.Translation, userID bson.ObjectID) translationDocument {
	doc := translationDocument{
		UserID:         userID,
		OriginalText:   t.OriginalText,
		TranslatedText: t.TranslatedText,
		SourceLanguage: t.SourceLanguage,
		TargetLanguage: t.TargetLanguage,
		Duration:       t.Duration,
		InputType:      string(t.InputType),
		Provider:       string(t.Provider),
		Confidence:     t.Confidence,
		CreatedAt:      t.CreatedAt,
	}
	if t.DetectedLanguage != "" {
		detected := t.DetectedLanguage
		doc.DetectedLanguage = &detected
	}
	return doc
}

func (d *translationDocument) toDomain() domain.Translation {
	t := domain.Translation{
		ID:             d.ID.Hex(),
		UserID:         d.UserID.Hex(),
		OriginalText:   d.OriginalText,
		TranslatedText: d.TranslatedText,
		SourceLanguage: d.SourceLanguage,
		TargetLanguage: d.TargetLanguage,
		Duration:       d.Duration,
		InputType:      domain.InputType(d.InputType),
		Provider:       domain.Provider(d.Provider),
		Confidence:     d.Confidence,
		CreatedAt:      d.CreatedAt,
	}
	if d.DetectedLanguage != nil {
		t.DetectedLanguage = *d.DetectedLanguage
	}
	return t
}

func historyQuery(f domain.HistoryFilter, userID bson.ObjectID) bson.D {
	filter := bson.D{{Key: "userId", Value: userID}}
	if f.TargetLanguage != "" {
		filter = append(filter, bson.E{Key: "targetLanguage", Value: f.TargetLanguage})
	}
	return filter
}

type TranslationRepo struct {
	translations *mongo.Collection
}

// NewTranslationRepo ensures the per-user history index exists.
func NewTranslationRepo(ctx context.Context, db *mongo.Database) (*TranslationRepo, error) {
	translations := db.Collection(translationsCollection)
	_, err := translations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("user_history"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create history index: %w", err)
	}
	return &TranslationRepo{translations: translations}, nil
}

func (r *TranslationRepo) Create(ctx context.Context, t *domain.Translation) error {
	userID, err := bson.ObjectIDFromHex(t.UserID)
	if err != nil {
		return fmt.Errorf("failed to save translation: invalid user id %q", t.UserID)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	doc := newTranslationDocument(t, userID)
	doc.ID = bson.NewObjectID()
	if _, err := r.translations.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save translation: %w", err)
	}
	t.ID = doc.ID.Hex()
	return nil
}

func (r *TranslationRepo) List(ctx context.Context, f domain.HistoryFilter) ([]domain.Translation, int, error) {
	userID, err := bson.ObjectIDFromHex(f.UserID)
	if err != nil {
		return []domain.Translation{}, 0, nil
	}
	filter := historyQuery(f, userID)

	total, err := r.translations.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count translations: %w", err)
	}

	cursor, err := r.translations.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(f.Offset())).
		SetLimit(int64(f.Limit)))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list translations: %w", err)
	}

	var docs []translationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to list translations: %w", err)
	}

	out := make([]domain.Translation, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, int(total), nil
}

// Delete removes the entry only when it belongs to userID.
func (r *TranslationRepo) Delete(ctx context.Context, userID, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrTranslationNotFound
	}
	uid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrTranslationNotFound
	}

	res, err := r.translations.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}, {Key: "userId", Value: uid}})
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrTranslationNotFound
	}
	return nil
}
