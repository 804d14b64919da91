package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	p := NewProvider("test-secret", time.Hour)

	token, err := p.IssueSession("u1", "anna@corp.ru", true)
	require.NoError(t, err)

	claims, err := p.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "anna@corp.ru", claims.Email)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "kollektiv", claims.Issuer)
}

func TestVerifySession_WrongSecret(t *testing.T) {
	p := NewProvider("secret-a", time.Hour)
	other := NewProvider("secret-b", time.Hour)

	token, err := p.IssueSession("u1", "anna@corp.ru", false)
	require.NoError(t, err)

	_, err = other.VerifySession(token)
	assert.Error(t, err)
}

func TestVerifySession_Expired(t *testing.T) {
	p := NewProvider("test-secret", time.Minute)
	issued := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return issued }

	token, err := p.IssueSession("u1", "anna@corp.ru", false)
	require.NoError(t, err)

	p.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = p.VerifySession(token)
	assert.Error(t, err)
}

func TestPurposeMismatch(t *testing.T) {
	p := NewProvider("test-secret", time.Hour)

	reset, err := p.IssuePasswordReset("u1", "anna@corp.ru")
	require.NoError(t, err)

	// A reset token never opens a session, and vice versa.
	_, err = p.VerifySession(reset)
	assert.Error(t, err)

	claims, err := p.VerifyPasswordReset(reset)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.False(t, claims.IsAdmin, "reset tokens never carry the admin flag")

	session, err := p.IssueSession("u1", "anna@corp.ru", false)
	require.NoError(t, err)
	_, err = p.VerifyPasswordReset(session)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "correct horse"))
}
