package auth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/angelmondragon/ptm-finance-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "ptm-core"}
	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{UserID: 42, Username: "bendahara", Role: "treasurer"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	actor, err := claims.ActorID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), actor)
	assert.Equal(t, "bendahara", claims.Username)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestParseAccessTokenRejectsBadTokens(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "ptm-core"}

	expired, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{UserID: 1})
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other, err := MintAccessToken(config.JWTConfig{Secret: "other", Issuer: "ptm-core"}, time.Now(), time.Hour, AccessTokenPayload{UserID: 1})
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, other)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	foreign, err := MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "elsewhere"}, time.Now(), time.Hour, AccessTokenPayload{UserID: 1})
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, foreign)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	_, err = ParseAccessToken(config.JWTConfig{}, foreign)
	assert.Error(t, err)
}

func TestParseAccessTokenWithoutConfiguredIssuer(t *testing.T) {
	token, err := MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "anything"}, time.Now(), time.Hour, AccessTokenPayload{UserID: 5})
	require.NoError(t, err)

	claims, err := ParseAccessToken(config.JWTConfig{Secret: "secret"}, token)
	require.NoError(t, err)
	actor, err := claims.ActorID()
	require.NoError(t, err)
	assert.Equal(t, int64(5), actor)
}

func TestActorIDFallsBackToSubjectAndStringIDs(t *testing.T) {
	var claims AccessTokenClaims
	require.NoError(t, json.Unmarshal([]byte(`{"user_id":"17"}`), &claims))
	actor, err := claims.ActorID()
	require.NoError(t, err)
	assert.Equal(t, int64(17), actor)

	claims = AccessTokenClaims{}
	claims.Subject = "9"
	actor, err = claims.ActorID()
	require.NoError(t, err)
	assert.Equal(t, int64(9), actor)

	claims = AccessTokenClaims{}
	claims.Subject = "user-abc"
	_, err = claims.ActorID()
	assert.Error(t, err)

	assert.Error(t, json.Unmarshal([]byte(`{"user_id":"abc"}`), &claims))
}
