package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/config"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/models"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret", JWTExpirationMinutes: 5}
	user := &models.User{BaseModel: models.BaseModel{ID: 42}}

	token, expiresAt, err := GenerateAccessToken(user, cfg)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, time.Minute)

	claims, err := ValidateToken(token, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateToken_Rejects(t *testing.T) {
	sign := func(c jwt.Claims, method jwt.SigningMethod) string {
		s, err := jwt.NewWithClaims(method, c).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := map[string]string{
		"expired":        sign(&Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: past}}, jwt.SigningMethodHS256),
		"no expiry":      sign(&Claims{UserID: 1}, jwt.SigningMethodHS256),
		"no user":        sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future}}, jwt.SigningMethodHS256),
		"other hmac alg": sign(&Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future}}, jwt.SigningMethodHS512),
		"garbage":        "abc.def.ghi",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateToken(token, "secret")
			assert.Error(t, err)
		})
	}
}
