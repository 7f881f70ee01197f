package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/hokm-game/internal/errors"
)

func TestTokenManager_IssueAndValidate(t *testing.T) {
	m := NewTokenManager("test-secret", 1)

	token, err := m.Issue("room-1", "p1", "玩家1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "room-1", claims.RoomID)
	assert.Equal(t, "p1", claims.PlayerID)
	assert.Equal(t, "玩家1", claims.Name)
}

func TestTokenManager_Validate_WrongSecret(t *testing.T) {
	m := NewTokenManager("secret-a", 1)
	other := NewTokenManager("secret-b", 1)

	token, err := m.Issue("room-1", "p1", "玩家1")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.True(t, apperrors.Is(err, apperrors.ErrTokenInvalid))
}

func TestTokenManager_Validate_Garbage(t *testing.T) {
	m := NewTokenManager("test-secret", 1)

	_, err := m.Validate("not-a-token")
	assert.True(t, apperrors.Is(err, apperrors.ErrTokenInvalid))
}

func TestTokenManager_Validate_Expired(t *testing.T) {
	m := NewTokenManager("test-secret", 1)
	m.expiry = -time.Minute

	token, err := m.Issue("room-1", "p1", "玩家1")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.True(t, apperrors.Is(err, apperrors.ErrTokenExpired))
}
