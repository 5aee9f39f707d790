package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Minute)

	token, expiresAt, err := signer.Generate("report-1", "leave-history/report-1.csv")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	reportID, relPath, _, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "report-1", reportID)
	assert.Equal(t, "leave-history/report-1.csv", relPath)
}

func TestSignedURLRejectsTamperedToken(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Minute)

	token, _, err := signer.Generate("report-1", "leave-history/report-1.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token + "x")
	assert.Error(t, err)
}

func TestSignedURLRejectsWrongSecret(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Minute)
	other := NewSignedURLSigner("other-secret", time.Minute)

	token, _, err := signer.Generate("report-1", "leave-history/report-1.csv")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token)
	assert.Error(t, err)
}

func TestSignedURLRejectsExpiredToken(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("test-secret"), ttl: -time.Minute}

	token, _, err := signer.Generate("report-1", "leave-history/report-1.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token)
	assert.Error(t, err)
}
