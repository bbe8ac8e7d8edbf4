package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Payload is the identity carried by both tokens of a pair.
type Payload struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Claims holds the JWT claims for access and refresh tokens. Type tells the
// two apart so one cannot be replayed as the other.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"id"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Type      string `json:"typ"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Issuer signs and verifies HS256 token pairs with a shared secret.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue returns a fresh access/refresh pair for p.
func (i *Issuer) Issue(p Payload) (TokenPair, error) {
	access, err := i.sign(p, TypeAccess, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(p, TypeRefresh, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) sign(p Payload, typ string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AccountID: p.ID,
		Role:      p.Role,
		Email:     p.Email,
		Username:  p.Username,
		Type:      typ,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token of either type.
func (i *Issuer) Verify(tokenString string) (*Payload, error) {
	claims, err := i.parse(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.payload(), nil
}

func (i *Issuer) VerifyAccess(tokenString string) (*Payload, error) {
	return i.verifyType(tokenString, TypeAccess)
}

func (i *Issuer) VerifyRefresh(tokenString string) (*Payload, error) {
	return i.verifyType(tokenString, TypeRefresh)
}

func (i *Issuer) verifyType(tokenString, typ string) (*Payload, error) {
	claims, err := i.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, typ)
	}
	return claims.payload(), nil
}

func (i *Issuer) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Claims) payload() *Payload {
	return &Payload{
		ID:       c.AccountID,
		Role:     c.Role,
		Email:    c.Email,
		Username: c.Username,
	}
}
