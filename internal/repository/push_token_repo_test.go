package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare-calling/internal/signalstore/memory"
	"telecare-calling/pkg/push"
)

func TestPushTokenRegisterAndResolve(t *testing.T) {
	ctx := context.Background()
	repo := NewPushTokenRepository(memory.New())

	tokens, err := repo.ForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, tokens)

	require.NoError(t, repo.Register(ctx, "bob", push.DeviceToken{Token: "android-1", Platform: push.PlatformFCM}))
	require.NoError(t, repo.Register(ctx, "bob", push.DeviceToken{Token: "iphone-1", Platform: push.PlatformAPNs}))

	tokens, err = repo.ForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "android-1", tokens[0].Token)
	assert.Equal(t, push.PlatformFCM, tokens[0].Platform)
	assert.Equal(t, push.PlatformAPNs, tokens[1].Platform)
}
