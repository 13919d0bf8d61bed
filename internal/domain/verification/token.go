// internal/domain/verification/token.go
package verification

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenPurpose = "cod_verification"

// TokenClaims represents verification token claims
type TokenClaims struct {
	Phone    string `json:"phone"`
	Purpose  string `json:"purpose"`
	Bypassed bool   `json:"bypassed"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates short-lived verification tokens
type TokenManager struct {
	secretKey []byte
	expiry    time.Duration
	issuer    string
}

// NewTokenManager creates a new token manager
func NewTokenManager(secretKey, issuer string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secretKey: []byte(secretKey),
		expiry:    expiry,
		issuer:    issuer,
	}
}

// Issue creates a signed verification token bound to a phone number.
// Returns the token string and its unique ID.
func (m *TokenManager) Issue(phone string, bypassed bool) (string, string, error) {
	now := time.Now().UTC()
	tokenID := uuid.New().String()

	claims := TokenClaims{
		Phone:    phone,
		Purpose:  tokenPurpose,
		Bypassed: bypassed,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   phone,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign verification token: %w", err)
	}

	return signed, tokenID, nil
}

// Parse validates the signature and expiry and returns the claims
func (m *TokenManager) Parse(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid verification token")
	}

	if claims.Purpose != tokenPurpose {
		return nil, fmt.Errorf("invalid token purpose")
	}

	return claims, nil
}

// Expiry returns the configured token lifetime
func (m *TokenManager) Expiry() time.Duration {
	return m.expiry
}
