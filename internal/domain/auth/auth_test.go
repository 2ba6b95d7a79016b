package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	pepper := []byte("pepper")

	h := Hash(pepper, "mm_live_abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, Hash(pepper, "mm_live_abc"))
	assert.NotEqual(t, h, Hash(pepper, "mm_live_abd"))
	assert.NotEqual(t, h, Hash([]byte("other"), "mm_live_abc"), "pepper is part of the hash")
}

func TestAPIKeyInfo_HasScope(t *testing.T) {
	k := &APIKeyInfo{Scopes: []string{ScopeAdmin}}
	assert.True(t, k.HasScope(ScopeAdmin))
	assert.False(t, (&APIKeyInfo{}).HasScope(ScopeAdmin))
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.False(t, (&Session{}).Expired(now), "no expiry")
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now}).Expired(now))
}

func TestUserFrom(t *testing.T) {
	_, ok := UserFrom(context.Background())
	assert.False(t, ok)

	_, ok = UserFrom(WithUser(context.Background(), nil))
	assert.False(t, ok)

	s, ok := UserFrom(WithUser(context.Background(), &Session{UserID: "u1"}))
	require.True(t, ok)
	assert.Equal(t, "u1", s.UserID)
}
