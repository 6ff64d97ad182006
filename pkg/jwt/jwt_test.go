package jwt

import (
	"testing"
	"time"

	golangjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret, issuer string, expiresAt time.Time) string {
	t.Helper()
	claims := &Claims{
		UserID: "user-1",
		Email:  "user@example.com",
		Role:   "customer",
		RegisteredClaims: golangjwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-1",
			ExpiresAt: golangjwt.NewNumericDate(expiresAt),
		},
	}
	token, err := golangjwt.NewWithClaims(golangjwt.SigningMethodHS256, claims).
		SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidateTokenReturnsClaims(t *testing.T) {
	m := NewJWTManager(testSecret, "boutique-backend")

	token := mintToken(t, testSecret, "boutique-backend", time.Now().Add(time.Hour))
	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "customer", claims.Role)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	m := NewJWTManager(testSecret, "boutique-backend")

	token := mintToken(t, "another-secret", "boutique-backend", time.Now().Add(time.Hour))
	_, err := m.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	m := NewJWTManager(testSecret, "boutique-backend")

	token := mintToken(t, testSecret, "boutique-backend", time.Now().Add(-time.Minute))
	_, err := m.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	m := NewJWTManager(testSecret, "boutique-backend")

	token := mintToken(t, testSecret, "someone-else", time.Now().Add(time.Hour))
	_, err := m.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSigningMethod(t *testing.T) {
	m := NewJWTManager(testSecret, "boutique-backend")

	claims := &Claims{
		UserID: "user-1",
		RegisteredClaims: golangjwt.RegisteredClaims{
			Issuer:    "boutique-backend",
			ExpiresAt: golangjwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := golangjwt.NewWithClaims(golangjwt.SigningMethodHS512, claims).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.Error(t, err)
}
