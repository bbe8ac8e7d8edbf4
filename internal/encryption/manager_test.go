package encryption

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func masterKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestLocalManager_RoundTrip(t *testing.T) {
	key := masterKey(t)
	em, err := NewLocalManager(key)
	require.NoError(t, err)

	data, err := em.EncryptField(context.Background(), "+15550100")
	require.NoError(t, err)
	assert.NotContains(t, data.EncryptedValue, "15550100")
	assert.Equal(t, localKeyID, data.KeyID)
	assert.Equal(t, "v1", data.Version)

	got, err := em.DecryptField(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "+15550100", got)

	// A fresh manager with the same master key must unwrap without the cache.
	other, err := NewLocalManager(key)
	require.NoError(t, err)
	got, err = other.DecryptField(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "+15550100", got)
	assert.Equal(t, 1, other.GetCacheSize())

	other.ClearCache()
	assert.Equal(t, 0, other.GetCacheSize())
}

func TestLocalManager_WrongMasterKey(t *testing.T) {
	em, err := NewLocalManager(masterKey(t))
	require.NoError(t, err)
	data, err := em.EncryptField(context.Background(), "secret")
	require.NoError(t, err)

	other, err := NewLocalManager(masterKey(t))
	require.NoError(t, err)
	_, err = other.DecryptField(context.Background(), data)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNewLocalManager_InvalidKey(t *testing.T) {
	_, err := NewLocalManager("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidMasterKey)

	_, err = NewLocalManager("%%%")
	assert.ErrorIs(t, err, ErrInvalidMasterKey)
}

type fakeKMS struct {
	plaintext []byte
	decrypts  int
}

func (f *fakeKMS) GenerateDataKey(_ context.Context, in *kms.GenerateDataKeyInput, _ ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	return &kms.GenerateDataKeyOutput{
		KeyId:          in.KeyId,
		Plaintext:      f.plaintext,
		CiphertextBlob: []byte("wrapped-by-kms"),
	}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, _ *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.decrypts++
	return &kms.DecryptOutput{Plaintext: f.plaintext}, nil
}

func TestKMSManager_RoundTrip(t *testing.T) {
	dek := make([]byte, 32)
	_, err := rand.Read(dek)
	require.NoError(t, err)
	client := &fakeKMS{plaintext: dek}

	em := NewKMSManager(client, "arn:aws:kms:eu-west-1:000000000000:key/test")
	data, err := em.EncryptField(context.Background(), "+15550100")
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:kms:eu-west-1:000000000000:key/test", data.KeyID)

	em.ClearCache()
	got, err := em.DecryptField(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "+15550100", got)
	assert.Equal(t, 1, client.decrypts)

	_, err = em.DecryptField(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 1, client.decrypts)
}

func TestDecryptField_Nil(t *testing.T) {
	em, err := NewLocalManager(masterKey(t))
	require.NoError(t, err)
	_, err = em.DecryptField(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestKeyCache_Bounded(t *testing.T) {
	em, err := NewLocalManager(masterKey(t))
	require.NoError(t, err)

	var first *EncryptedData
	for i := 0; i < keyCacheSize+50; i++ {
		data, err := em.EncryptField(context.Background(), "+15550100")
		require.NoError(t, err)
		if first == nil {
			first = data
		}
	}
	assert.Equal(t, keyCacheSize, em.GetCacheSize())

	// An evicted key is unwrapped again from the master key.
	got, err := em.DecryptField(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "+15550100", got)
}
