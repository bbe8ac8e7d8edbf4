package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"identity-service/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidMasterKey = errors.New("master key must be 32 bytes, base64 encoded")
)

const (
	versionV1  = "v1"
	localKeyID = "local"

	keyCacheSize = 1024
)

// EncryptedData is an envelope-encrypted field as persisted next to the
// account document.
type EncryptedData struct {
	EncryptedValue string    `bson:"value" json:"encrypted_value"`
	EncryptedDEK   string    `bson:"dek" json:"encrypted_dek"`
	KeyID          string    `bson:"keyId" json:"key_id"`
	Version        string    `bson:"version" json:"version"`
	CreatedAt      time.Time `bson:"createdAt" json:"created_at"`
}

// KMSAPI is the subset of the AWS KMS client used for data keys.
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

type DataKey struct {
	Plaintext  []byte
	Ciphertext []byte
	KeyID      string
}

// EncryptionManager seals profile fields with per-value AES-256-GCM data
// keys. Data keys are wrapped by KMS when a client is configured, otherwise
// by a local master key.
type EncryptionManager struct {
	kmsClient KMSAPI
	kmsKeyID  string
	masterKey []byte
	keyCache  *lru.Cache[string, []byte] // wrapped DEK -> plaintext DEK
}

func newKeyCache() *lru.Cache[string, []byte] {
	cache, err := lru.New[string, []byte](keyCacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return cache
}

// NewKMSManager wraps data keys with the given KMS key.
func NewKMSManager(client KMSAPI, keyID string) *EncryptionManager {
	return &EncryptionManager{
		kmsClient: client,
		kmsKeyID:  keyID,
		keyCache:  newKeyCache(),
	}
}

// NewLocalManager wraps data keys with masterKey, a base64 encoded 32 byte
// key. An empty masterKey generates an ephemeral one, which only suits
// development since values written with it cannot be read after restart.
func NewLocalManager(masterKey string) (*EncryptionManager, error) {
	var key []byte
	if masterKey == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate master key: %w", err)
		}
		util.Warn("ENCRYPTION_MASTER_KEY not set, using an ephemeral master key")
	} else {
		decoded, err := base64.StdEncoding.DecodeString(masterKey)
		if err != nil || len(decoded) != 32 {
			return nil, ErrInvalidMasterKey
		}
		key = decoded
	}
	return &EncryptionManager{masterKey: key, keyCache: newKeyCache()}, nil
}

// GenerateDataKey returns a fresh AES-256 key together with its wrapped form.
func (em *EncryptionManager) GenerateDataKey(ctx context.Context) (*DataKey, error) {
	if em.kmsClient == nil {
		return em.generateLocalKey()
	}

	result, err := em.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(em.kmsKeyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	return &DataKey{
		Plaintext:  result.Plaintext,
		Ciphertext: result.CiphertextBlob,
		KeyID:      em.kmsKeyID,
	}, nil
}

func (em *EncryptionManager) generateLocalKey() (*DataKey, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	wrapped, err := seal(em.masterKey, key)
	if err != nil {
		return nil, err
	}
	return &DataKey{
		Plaintext:  key,
		Ciphertext: wrapped,
		KeyID:      localKeyID,
	}, nil
}

// EncryptField encrypts a sensitive value using envelope encryption.
func (em *EncryptionManager) EncryptField(ctx context.Context, plaintext string) (*EncryptedData, error) {
	dataKey, err := em.GenerateDataKey(ctx)
	if err != nil {
		return nil, err
	}

	ciphertext, err := seal(dataKey.Plaintext, []byte(plaintext))
	if err != nil {
		return nil, err
	}

	wrapped := base64.StdEncoding.EncodeToString(dataKey.Ciphertext)
	em.keyCache.Add(wrapped, dataKey.Plaintext)

	util.Debug("Field encrypted", zap.String("key_id", dataKey.KeyID))

	return &EncryptedData{
		EncryptedValue: base64.StdEncoding.EncodeToString(ciphertext),
		EncryptedDEK:   wrapped,
		KeyID:          dataKey.KeyID,
		Version:        versionV1,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// DecryptField reverses EncryptField.
func (em *EncryptionManager) DecryptField(ctx context.Context, data *EncryptedData) (string, error) {
	if data == nil {
		return "", fmt.Errorf("%w: no data", ErrDecryptionFailed)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(data.EncryptedValue)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext format", ErrDecryptionFailed)
	}

	if cached, ok := em.keyCache.Get(data.EncryptedDEK); ok {
		return open(cached, ciphertext)
	}

	wrapped, err := base64.StdEncoding.DecodeString(data.EncryptedDEK)
	if err != nil {
		return "", fmt.Errorf("%w: invalid DEK format", ErrDecryptionFailed)
	}

	var dek []byte
	if data.KeyID == localKeyID {
		if em.masterKey == nil {
			return "", fmt.Errorf("%w: local key without master key", ErrDecryptionFailed)
		}
		plain, err := open(em.masterKey, wrapped)
		if err != nil {
			return "", err
		}
		dek = []byte(plain)
	} else {
		if em.kmsClient == nil {
			return "", fmt.Errorf("%w: KMS key without KMS client", ErrDecryptionFailed)
		}
		result, err := em.kmsClient.Decrypt(ctx, &kms.DecryptInput{
			CiphertextBlob: wrapped,
			KeyId:          aws.String(data.KeyID),
		})
		if err != nil {
			return "", fmt.Errorf("%w: failed to decrypt DEK: %v", ErrDecryptionFailed, err)
		}
		dek = result.Plaintext
	}

	em.keyCache.Add(data.EncryptedDEK, dek)
	return open(dek, ciphertext)
}

// ClearCache drops every cached data key.
func (em *EncryptionManager) ClearCache() {
	em.keyCache.Purge()
}

// GetCacheSize returns the number of cached data keys, at most keyCacheSize.
func (em *EncryptionManager) GetCacheSize() int {
	return em.keyCache.Len()
}

// seal returns nonce||ciphertext.
func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
