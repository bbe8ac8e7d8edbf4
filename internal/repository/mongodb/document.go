package mongodb

import (
	"context"
	"fmt"

	"identity-service/internal/encryption"
	"identity-service/internal/models"
)

// FieldEncryptor seals the phone number before it reaches the collection.
type FieldEncryptor interface {
	EncryptField(ctx context.Context, plaintext string) (*encryption.EncryptedData, error)
	DecryptField(ctx context.Context, data *encryption.EncryptedData) (string, error)
}

// accountDocument is the stored shape of an account. When encryption is on,
// phone is empty and phoneEncrypted carries the sealed value.
type accountDocument struct {
	models.Account `bson:",inline"`
	PhoneEncrypted *encryption.EncryptedData `bson:"phoneEncrypted,omitempty"`
}

func toDocument(ctx context.Context, enc FieldEncryptor, a *models.Account) (*accountDocument, error) {
	doc := &accountDocument{Account: *a.Clone()}
	if enc == nil || a.Phone == "" {
		return doc, nil
	}
	sealed, err := sealPhone(ctx, enc, a)
	if err != nil {
		return nil, err
	}
	doc.Phone = ""
	doc.PhoneEncrypted = sealed
	return doc, nil
}

// sealPhone reuses the ciphertext the account was loaded with when the phone
// has not changed, so repeated saves do not mint a data key each time.
func sealPhone(ctx context.Context, enc FieldEncryptor, a *models.Account) (*encryption.EncryptedData, error) {
	if a.SealedPhone != nil {
		if phone, err := enc.DecryptField(ctx, a.SealedPhone); err == nil && phone == a.Phone {
			return a.SealedPhone, nil
		}
	}
	sealed, err := enc.EncryptField(ctx, a.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt phone: %w", err)
	}
	return sealed, nil
}

func fromDocument(ctx context.Context, enc FieldEncryptor, doc *accountDocument) (*models.Account, error) {
	a := doc.Account
	if doc.PhoneEncrypted == nil {
		return &a, nil
	}
	if enc == nil {
		return nil, fmt.Errorf("account %s has an encrypted phone but encryption is disabled", a.IDHex())
	}
	phone, err := enc.DecryptField(ctx, doc.PhoneEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt phone: %w", err)
	}
	a.Phone = phone
	a.SealedPhone = doc.PhoneEncrypted
	return &a, nil
}
