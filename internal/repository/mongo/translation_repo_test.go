package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestTranslationDocument_RoundTrip(t *testing.T) {
	userID := bson.NewObjectID()
	confidence := 0.8
	in := &domain.Translation{
		UserID:         userID.Hex(),
		OriginalText:   "hello",
		TranslatedText: "hola",
		SourceLanguage: "auto",
		TargetLanguage: "es",
		InputType:      domain.InputText,
		Provider:       domain.ProviderGroq,
		Confidence:     &confidence,
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	doc := newTranslationDocument(in, userID)
	assert.Nil(t, doc.DetectedLanguage)

	doc.ID = bson.NewObjectID()
	out := doc.toDomain()
	assert.Equal(t, doc.ID.Hex(), out.ID)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, domain.ProviderGroq, out.Provider)
	assert.Empty(t, out.DetectedLanguage)
	require.NotNil(t, out.Confidence)
	assert.Equal(t, 0.8, *out.Confidence)
}

func TestHistoryQuery(t *testing.T) {
	userID := bson.NewObjectID()

	assert.Equal(t, bson.D{{Key: "userId", Value: userID}},
		historyQuery(domain.HistoryFilter{}, userID))
	assert.Equal(t, bson.D{{Key: "userId", Value: userID}, {Key: "targetLanguage", Value: "fr"}},
		historyQuery(domain.HistoryFilter{TargetLanguage: "fr"}, userID))
}

// Runs against a real server when MONGO_TEST_URI is set.
func TestTranslationRepo_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	db := client.Database("audio_translator_test_" + bson.NewObjectID().Hex())
	defer db.Drop(context.Background())

	repo, err := NewTranslationRepo(ctx, db)
	require.NoError(t, err)

	owner := bson.NewObjectID().Hex()
	start := time.Now().UTC().Truncate(time.Millisecond)
	var ids []string
	for i := 0; i < 3; i++ {
		tr := &domain.Translation{
			UserID: owner, OriginalText: "hi", TranslatedText: "salut",
			SourceLanguage: "auto", TargetLanguage: "fr",
			InputType: domain.InputText, Provider: domain.ProviderOpenAI,
			CreatedAt: start.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(ctx, tr))
		ids = append(ids, tr.ID)
	}

	page, total, err := repo.List(ctx, domain.HistoryFilter{UserID: owner, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)

	assert.ErrorIs(t, repo.Delete(ctx, bson.NewObjectID().Hex(), ids[0]), domain.ErrTranslationNotFound)
	require.NoError(t, repo.Delete(ctx, owner, ids[0]))
	assert.ErrorIs(t, repo.Delete(ctx, owner, ids[0]), domain.ErrTranslationNotFound)
}
