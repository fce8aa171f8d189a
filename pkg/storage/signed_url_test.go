package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndVerify(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("run-1", "runs/run-1/allocation_CS_2_2024-05-01_09_00.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Verify(token, false)
	require.NoError(t, err)
	require.Equal(t, "run-1", claims.RunID)
	require.Equal(t, "runs/run-1/allocation_CS_2_2024-05-01_09_00.csv", claims.Path)
	require.True(t, expiresAt.Equal(claims.ExpiresAt))
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return base }
	token, _, err := signer.Generate("run-1", "runs/run-1/metrics.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = signer.Verify(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	claims, err := signer.Verify(token, true)
	require.NoError(t, err)
	require.Equal(t, "runs/run-1/metrics.csv", claims.Path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("run-1", "runs/run-1/metrics.csv")
	require.NoError(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Verify(token, false)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("not-a-token", false)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = signer.Generate("run.1", "x.csv")
	require.Error(t, err)
}
