package crypto

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken_RoundTrip(t *testing.T) {
	token, jti, err := GenerateToken("secret", "user-123", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Len(t, jti, 32)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Sub)
	assert.Equal(t, jti, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestGenerateToken_UniqueJTI(t *testing.T) {
	_, a, err := GenerateToken("secret", "user-123", time.Hour)
	require.NoError(t, err)
	_, b, err := GenerateToken("secret", "user-123", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseToken_Rejects(t *testing.T) {
	wrongSecret, _, err := GenerateToken("other", "user-123", time.Hour)
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Sub: "user-123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredStr, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noSubjectStr, err := noSubject.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret": wrongSecret,
		"expired":      expiredStr,
		"no subject":   noSubjectStr,
		"malformed":    "not.a.valid.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			claims, err := ParseToken("secret", token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}
