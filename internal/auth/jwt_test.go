package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager("0123456789abcdef0123", 15*time.Minute)

	tok, exp, err := m.Issue("user-1", "sess-1", "a@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	claims, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestParse_Expired(t *testing.T) {
	m := NewTokenManager("0123456789abcdef0123", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _, err := m.Issue("u", "s", "")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_WrongSecret(t *testing.T) {
	tok, _, err := NewTokenManager("secret-one-secret-one", time.Minute).Issue("u", "s", "")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-two-secret-two", time.Minute).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsNoneAlg(t *testing.T) {
	claims := Claims{UserID: "u", SessionID: "s", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("0123456789abcdef0123", time.Minute).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_MissingSession(t *testing.T) {
	m := NewTokenManager("0123456789abcdef0123", time.Minute)
	tok, _, err := m.Issue("u", "", "")
	require.NoError(t, err)

	_, err = m.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Garbage(t *testing.T) {
	_, err := NewTokenManager("0123456789abcdef0123", time.Minute).Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
