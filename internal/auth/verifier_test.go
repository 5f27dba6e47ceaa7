package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyID    = "test-key"
	testAudience = "img-service"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// buildJWKSetJSON serializes the RSA public key as a one-key JWK Set.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func newTestVerifier(t *testing.T, key *rsa.PrivateKey) *Verifier {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewVerifierWithKeyfunc(kf, testAudience, logger)
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{testAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
}

func TestVerify_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	v := newTestVerifier(t, key)

	token := signToken(t, key, testKeyID, validClaims("3f1b9a4e-9c0d-4b5a-8f26-7a1c2d3e4f50"))

	claims, err := v.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "3f1b9a4e-9c0d-4b5a-8f26-7a1c2d3e4f50", claims.Subject)
}

func TestVerify_HeaderFailures(t *testing.T) {
	key := generateTestKey(t)
	v := newTestVerifier(t, key)
	token := signToken(t, key, testKeyID, validClaims("user-1"))

	cases := map[string]string{
		"missing header":   "",
		"no bearer prefix": token,
		"wrong scheme":     "Basic " + token,
		"empty token":      "Bearer ",
		"garbage token":    "Bearer not.a.jwt",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			claims, err := v.Verify(context.Background(), header)
			assert.ErrorIs(t, err, ErrUnauthenticated)
			assert.Nil(t, claims)
		})
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	key := generateTestKey(t)
	v := newTestVerifier(t, key)

	claims := validClaims("user-1")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := signToken(t, key, testKeyID, claims)

	_, err := v.Verify(context.Background(), "Bearer "+token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerify_WrongAudience(t *testing.T) {
	key := generateTestKey(t)
	v := newTestVerifier(t, key)

	claims := validClaims("user-1")
	claims.Audience = jwt.ClaimStrings{"some-other-service"}
	token := signToken(t, key, testKeyID, claims)

	_, err := v.Verify(context.Background(), "Bearer "+token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerify_MissingExpiry(t *testing.T) {
	key := generateTestKey(t)
	v := newTestVerifier(t, key)

	claims := validClaims("user-1")
	claims.ExpiresAt = nil
	token := signToken(t, key, testKeyID, claims)

	_, err := v.Verify(context.Background(), "Bearer "+token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerify_UnresolvableKeyID(t *testing.T) {
	key := generateTestKey(t)
	v := newTestVerifier(t, key)

	token := signToken(t, key, "unknown-key", validClaims("user-1"))

	_, err := v.Verify(context.Background(), "Bearer "+token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerify_WrongSigningKey(t *testing.T) {
	key := generateTestKey(t)
	other := generateTestKey(t)
	v := newTestVerifier(t, key)

	// Signed by a different key but claiming the published kid.
	token := signToken(t, other, testKeyID, validClaims("user-1"))

	_, err := v.Verify(context.Background(), "Bearer "+token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerify_RejectsHMAC(t *testing.T) {
	key := generateTestKey(t)
	v := newTestVerifier(t, key)

	// Algorithm-confusion attempt: HS256 token, only RS256 is accepted.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("user-1"))
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "Bearer "+signed)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerify_EmptySubject(t *testing.T) {
	key := generateTestKey(t)
	v := newTestVerifier(t, key)

	token := signToken(t, key, testKeyID, validClaims(""))

	_, err := v.Verify(context.Background(), "Bearer "+token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
