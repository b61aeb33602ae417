// Package auth issues and verifies the signed tokens that identify callers.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yukikurage/favor-exchange-api/internal/models"
)

// Token purposes
const (
	PurposeAccess        = "access"
	PurposePasswordReset = "password_reset"
)

const issuer = "favor-exchange-api"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongPurpose = errors.New("token issued for another purpose")
	ErrEmptySecret  = errors.New("jwt secret must not be empty")
)

// Claims carried by every token.
type Claims struct {
	UserID  uint64          `json:"uid"`
	Role    models.UserRole `json:"role,omitempty"`
	Purpose string          `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager returns a manager signing with secret. Access tokens live for ttl.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the lifetime of access tokens.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs an access token for user.
func (m *TokenManager) Issue(user *models.User) (string, *Claims, error) {
	return m.sign(user.ID, user.Role, PurposeAccess, m.ttl)
}

// IssuePasswordReset signs a short-lived token that can only reset a password.
func (m *TokenManager) IssuePasswordReset(userID uint64, ttl time.Duration) (string, *Claims, error) {
	return m.sign(userID, "", PurposePasswordReset, ttl)
}

func (m *TokenManager) sign(userID uint64, role models.UserRole, purpose string, ttl time.Duration) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		UserID:  userID,
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies tokenStr and checks that it was issued for purpose.
func (m *TokenManager) Parse(tokenStr, purpose string) (*Claims, error) {
	claims := new(Claims)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}
