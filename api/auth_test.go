package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	am := NewAuthManager("test-secret", time.Hour)

	token, expiresAt, err := am.GenerateToken("worker-1", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := am.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", claims.ClientID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "structdoc-api", claims.Issuer)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	am := NewAuthManager("test-secret", time.Hour)

	_, err := am.ValidateToken("not-a-jwt")
	require.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthManager("secret-one", time.Hour)
	verifier := NewAuthManager("secret-two", time.Hour)

	token, _, err := issuer.GenerateToken("worker-1", "client")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	am := NewAuthManager("test-secret", time.Hour)

	claims := &Claims{
		ClientID: "worker-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    "structdoc-api",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = am.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse JWT")
}

func TestValidateTokenRejectsWrongSigningMethod(t *testing.T) {
	am := NewAuthManager("test-secret", time.Hour)

	// An unsigned token never passes the HMAC method check.
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{ClientID: "worker-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = am.ValidateToken(token)
	require.Error(t, err)
}

func TestAuthManagerRandomSecret(t *testing.T) {
	am := NewAuthManager("", 0)

	token, _, err := am.GenerateToken("worker-1", "client")
	require.NoError(t, err)

	claims, err := am.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", claims.ClientID)

	// A second manager draws its own secret, so tokens do not transfer.
	other := NewAuthManager("", 0)
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard bearer", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"wrong scheme", "Token abc123", ""},
		{"no token", "Bearer", ""},
		{"empty header", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTokenFromHeader(tt.header))
		})
	}
}

func TestIsPublicEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	assert.True(t, srv.isPublicEndpoint("/health"))
	assert.True(t, srv.isPublicEndpoint("/"))
	assert.True(t, srv.isPublicEndpoint("/openapi.json"))
	assert.True(t, srv.isPublicEndpoint("/auth/token"))
	assert.False(t, srv.isPublicEndpoint("/v1/parse"))
	assert.False(t, srv.isPublicEndpoint("/v1/stats"))
}
