package controllers

import (
	"context"
	"testing"

	"github.com/amaumene/chansync/internal/metrics"
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockUntilCancelled(ctx context.Context, h *LoopHandle) {
	<-ctx.Done()
}

func TestRegistryReplacesLoopForSameKey(t *testing.T) {
	m := metrics.New()
	r := NewRegistry(m, utils.NewNopLogger())
	defer r.Close()

	session := models.PollSession{TargetKey: "chan/readiness/x", Kind: models.PollKindReadiness}
	first := r.Start(context.Background(), session, blockUntilCancelled)
	second := r.Start(context.Background(), session, blockUntilCancelled)

	<-first
	assert.True(t, r.Running(session.TargetKey), "the replacement keeps running")
	assert.Len(t, r.Sessions(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveLoops))

	assert.True(t, r.Cancel(session.TargetKey))
	<-second
	assert.False(t, r.Running(session.TargetKey))
	assert.False(t, r.Cancel(session.TargetKey))
}

func TestRegistryTracksAttempts(t *testing.T) {
	r := NewRegistry(nil, utils.NewNopLogger())
	defer r.Close()

	recorded := make(chan struct{})
	key := "chan/refresh"
	done := r.Start(context.Background(), models.PollSession{TargetKey: key, Kind: models.PollKindRefresh}, func(ctx context.Context, h *LoopHandle) {
		h.Attempt()
		h.Attempt()
		h.SetState(models.StateWaitingForHLS)
		close(recorded)
		<-ctx.Done()
	})

	<-recorded
	session, ok := r.Session(key)
	require.True(t, ok)
	assert.Equal(t, 2, session.AttemptCount)
	assert.Equal(t, models.StateWaitingForHLS, session.State)
	assert.False(t, session.StartedAt.IsZero())

	r.Cancel(key)
	<-done
}

func TestRegistryFinishedLoopIsRemoved(t *testing.T) {
	r := NewRegistry(nil, utils.NewNopLogger())
	done := r.Start(context.Background(), models.PollSession{TargetKey: "once"}, func(ctx context.Context, h *LoopHandle) {})
	<-done

	_, ok := r.Session("once")
	assert.False(t, ok)
}

func TestRegistryCancelPrefix(t *testing.T) {
	r := NewRegistry(nil, utils.NewNopLogger())
	defer r.Close()

	a := r.Start(context.Background(), models.PollSession{TargetKey: "one/refresh"}, blockUntilCancelled)
	b := r.Start(context.Background(), models.PollSession{TargetKey: "one/sweep"}, blockUntilCancelled)
	r.Start(context.Background(), models.PollSession{TargetKey: "two/refresh"}, blockUntilCancelled)

	assert.Equal(t, 2, r.CancelPrefix("one/"))
	<-a
	<-b
	assert.True(t, r.Running("two/refresh"))
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry(nil, utils.NewNopLogger())

	a := r.Start(context.Background(), models.PollSession{TargetKey: "a"}, blockUntilCancelled)
	b := r.Start(context.Background(), models.PollSession{TargetKey: "b"}, blockUntilCancelled)
	r.Close()
	<-a
	<-b

	called := false
	late := r.Start(context.Background(), models.PollSession{TargetKey: "c"}, func(ctx context.Context, h *LoopHandle) {
		called = true
	})
	<-late
	assert.False(t, called)
	assert.Empty(t, r.Sessions())
}
