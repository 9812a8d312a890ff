package security

import (
	"testing"
	"time"

	"rental-reservation-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_AccessToken(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.GenerateAccessToken(12, "owner@example.com", domain.RoleOwner)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int32(12), claims.UserID)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.Equal(t, domain.Actor{UserID: 12, Role: domain.RoleOwner}, claims.Actor())
	assert.Equal(t, TokenTypeAccess, claims.Type)
}

func TestTokenManager_ServiceToken(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.GenerateServiceToken("cronjob")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSystem, claims.Role)
	assert.True(t, claims.Actor().IsStaff())
}

func TestTokenManager_RejectsSystemAccessToken(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	_, err := tm.GenerateAccessToken(1, "", domain.RoleSystem)
	assert.Error(t, err)
}

func TestTokenManager_Invalid(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	token, err := tm.GenerateAccessToken(1, "a@example.com", domain.RoleCustomer)
	require.NoError(t, err)

	t.Run("WrongSecret", func(t *testing.T) {
		_, err := NewTokenManager("other", time.Hour).ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		past := &tokenManager{secret: []byte("test-secret"), accessTTL: time.Minute, now: func() time.Time { return time.Now().Add(-time.Hour) }}
		old, err := past.GenerateAccessToken(1, "", domain.RoleCustomer)
		require.NoError(t, err)
		_, err = tm.ValidateToken(old)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("WrongType", func(t *testing.T) {
		claims := UserClaims{UserID: 1, Type: "refresh", RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{accessAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = tm.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})
}
