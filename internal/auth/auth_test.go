package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("top-secret", time.Hour)

	tok, err := iss.Issue(Subject{UserID: "u1", Username: "alice", Admin: true})
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := iss.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.Admin)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	tok, err := NewIssuer("one", time.Hour).Issue(Subject{UserID: "u1"})
	require.NoError(t, err)

	_, err = NewIssuer("two", time.Hour).Parse(tok.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParseRejectsExpired(t *testing.T) {
	iss := NewIssuer("secret", time.Minute)
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := iss.Issue(Subject{UserID: "u1"})
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Parse(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer a b"} {
		_, err := BearerToken(h)
		assert.ErrorIs(t, err, ErrMissingToken, h)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("supersecret")
	require.NoError(t, err)

	ok, err := CheckPassword(hash, "supersecret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "x")
	assert.Error(t, err)
}
