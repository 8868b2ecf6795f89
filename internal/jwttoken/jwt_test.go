package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
)

func TestRoundTrip(t *testing.T) {
	svc := NewService("test-signing-key", "trustline-test")

	token, err := svc.GenerateAccessToken(domain.Address("alice"), time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

func TestValidateToken_Errors(t *testing.T) {
	svc := NewService("test-signing-key", "trustline-test")

	t.Run("expired token rejected", func(t *testing.T) {
		token, err := svc.GenerateAccessToken(domain.Address("alice"), -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		other := NewService("different-key", "trustline-test")
		token, err := other.GenerateAccessToken(domain.Address("alice"), time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		require.Error(t, err)
	})
}
