package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls int32
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	atomic.AddInt32(&c.calls, 1)
	return nil
}

func (c *countingRefresher) count() int {
	return int(atomic.LoadInt32(&c.calls))
}

func TestSchedulerRunsJobsImmediately(t *testing.T) {
	follow, inbox := &countingRefresher{}, &countingRefresher{}
	s := NewScheduler(&config.Config{
		FollowRefreshSchedule: "@every 1h",
		InboxRefreshSchedule:  "@every 1h",
	}, follow, inbox, utils.NewNopLogger())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return follow.count() == 1 && inbox.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(&config.Config{
		FollowRefreshSchedule: "whenever",
		InboxRefreshSchedule:  "@every 1m",
	}, &countingRefresher{}, &countingRefresher{}, utils.NewNopLogger())

	assert.Error(t, s.Start())
}
