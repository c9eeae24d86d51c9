package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStartSessionSweep(t *testing.T) {
	store := NewSessionStore(time.Millisecond, time.Millisecond, zap.NewNop())
	require.NoError(t, store.Create("stale", draftSession()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched, err := StartSessionSweep(ctx, store, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, sched)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
