package mongodb

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"identity-service/internal/encryption"
	"identity-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func sampleAccount() *models.Account {
	a := models.NewAccount(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	a.ID = primitive.NewObjectID()
	a.Email = "a@x.com"
	a.FirstName = "Ada"
	a.LastName = "Lovelace"
	a.Phone = "5550100"
	a.Password = "$2a$10$digest"
	a.Interests = []string{"chess"}
	return a
}

func localEncryptor(t *testing.T) *encryption.EncryptionManager {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	em, err := encryption.NewLocalManager(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return em
}

func TestDocument_FieldNames(t *testing.T) {
	a := sampleAccount()
	a.AttachOTP(123456, time.Date(2026, 3, 1, 0, 1, 0, 0, time.UTC))

	doc, err := toDocument(context.Background(), nil, a)
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))

	assert.Equal(t, a.ID, m["_id"])
	assert.Equal(t, "a@x.com", m["email"])
	assert.Equal(t, "user", m["role"])
	assert.EqualValues(t, 123456, m["otp"])
	assert.Contains(t, m, "otpExpires")
	assert.Equal(t, false, m["isEmailVerified"])
	assert.Contains(t, m, "intrests")
	assert.NotContains(t, m, "phoneEncrypted")
	assert.Equal(t, "5550100", m["phone"])
}

func TestDocument_NullOTPFields(t *testing.T) {
	doc, err := toDocument(context.Background(), nil, sampleAccount())
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Nil(t, m["otp"])
	assert.Nil(t, m["otpExpires"])
	assert.Contains(t, m, "otp")
}

func TestDocument_EncryptedPhone(t *testing.T) {
	ctx := context.Background()
	enc := localEncryptor(t)
	a := sampleAccount()

	doc, err := toDocument(ctx, enc, a)
	require.NoError(t, err)
	assert.Empty(t, doc.Phone)
	require.NotNil(t, doc.PhoneEncrypted)
	assert.Equal(t, "5550100", a.Phone)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded accountDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	got, err := fromDocument(ctx, enc, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "5550100", got.Phone)
	assert.Equal(t, a.Email, got.Email)
	assert.Equal(t, a.Interests, got.Interests)
}

func TestDocument_EncryptedPhoneWithoutEncryptor(t *testing.T) {
	ctx := context.Background()
	doc, err := toDocument(ctx, localEncryptor(t), sampleAccount())
	require.NoError(t, err)

	_, err = fromDocument(ctx, nil, doc)
	assert.Error(t, err)
}

func TestDocument_RepeatedSavesReuseSealedPhone(t *testing.T) {
	ctx := context.Background()
	enc := localEncryptor(t)

	first, err := toDocument(ctx, enc, sampleAccount())
	require.NoError(t, err)
	loaded, err := fromDocument(ctx, enc, first)
	require.NoError(t, err)
	require.NotNil(t, loaded.SealedPhone)

	cached := enc.GetCacheSize()
	for i := 0; i < 1000; i++ {
		doc, err := toDocument(ctx, enc, loaded)
		require.NoError(t, err)
		assert.Equal(t, first.PhoneEncrypted.EncryptedValue, doc.PhoneEncrypted.EncryptedValue)
	}
	assert.Equal(t, cached, enc.GetCacheSize())
}

func TestDocument_ChangedPhoneIsResealed(t *testing.T) {
	ctx := context.Background()
	enc := localEncryptor(t)

	first, err := toDocument(ctx, enc, sampleAccount())
	require.NoError(t, err)
	loaded, err := fromDocument(ctx, enc, first)
	require.NoError(t, err)

	loaded.Phone = "5550199"
	doc, err := toDocument(ctx, enc, loaded)
	require.NoError(t, err)
	assert.NotEqual(t, first.PhoneEncrypted.EncryptedValue, doc.PhoneEncrypted.EncryptedValue)

	got, err := fromDocument(ctx, enc, doc)
	require.NoError(t, err)
	assert.Equal(t, "5550199", got.Phone)
}
