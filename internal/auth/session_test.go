package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	manager, err := New("test-secret", time.Hour)
	require.NoError(t, err)

	now := time.Now()
	token, err := manager.Issue("Me@Example.com", now)
	require.NoError(t, err)

	email, err := manager.Parse(token, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", email)
}

func TestParse_Expired(t *testing.T) {
	manager, err := New("test-secret", time.Hour)
	require.NoError(t, err)

	issued := time.Now().Add(-2 * time.Hour)
	token, err := manager.Issue("me@example.com", issued)
	require.NoError(t, err)

	_, err = manager.Parse(token, time.Now())
	assert.ErrorContains(t, err, "expired")
}

func TestParse_Tampered(t *testing.T) {
	manager, err := New("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := manager.Issue("me@example.com", time.Now())
	require.NoError(t, err)

	_, err = manager.Parse(token[:len(token)-2]+"xx", time.Now())
	assert.Error(t, err)

	_, err = manager.Parse("", time.Now())
	assert.Error(t, err)
}

func TestParse_DifferentSecret(t *testing.T) {
	issuer, err := New("secret-one", time.Hour)
	require.NoError(t, err)
	verifier, err := New("secret-two", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue("me@example.com", time.Now())
	require.NoError(t, err)

	_, err = verifier.Parse(token, time.Now())
	assert.Error(t, err)
}

func TestNew_GeneratesSecret(t *testing.T) {
	manager, err := New("", time.Hour)
	require.NoError(t, err)

	token, err := manager.Issue("me@example.com", time.Now())
	require.NoError(t, err)
	email, err := manager.Parse(token, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", email)
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Someone@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", email)

	_, err = NormalizeEmail("")
	assert.Error(t, err)
	_, err = NormalizeEmail("not-an-email")
	assert.Error(t, err)
}
