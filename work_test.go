package proactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestZeroExpiryWorkFiresOnceOnNextPass(t *testing.T) {
	p := newInlineProactor(t)

	fired := 0
	require.NoError(t, p.AddWork(func() { fired++ }, 0))
	require.Equal(t, 1, p.ScheduledWork())

	worked := p.Poll(nil)
	require.Equal(t, 1, worked)
	require.Equal(t, 1, fired)
	require.Equal(t, 0, p.ScheduledWork())

	p.Poll(nil)
	require.Equal(t, 1, fired)
}

func TestPermanentWorkSurvivesPasses(t *testing.T) {
	p := newInlineProactor(t)

	fired := 0
	require.NoError(t, p.AddWork(func() { fired++ }, PermanentCompletionHandler))
	require.Equal(t, 1, p.PermanentWork())
	require.Equal(t, 0, p.ScheduledWork())

	for i := 0; i < 3; i++ {
		p.Poll(nil)
	}
	require.Equal(t, 3, fired)
	require.Equal(t, 1, p.PermanentWork())

	require.Equal(t, 1, p.RemovePermanentWork(-1))
	p.Poll(nil)
	require.Equal(t, 3, fired)
}

func TestFutureWorkDoesNotFireEarly(t *testing.T) {
	p := newInlineProactor(t)

	fired := 0
	require.NoError(t, p.AddWork(func() { fired++ }, time.Hour))
	p.Poll(nil)
	require.Equal(t, 0, fired)
	require.Equal(t, 1, p.ScheduledWork())
}

func TestRemoveScheduledWorkFromFront(t *testing.T) {
	p := newInlineProactor(t)

	var fired []string
	require.NoError(t, p.AddWork(func() { fired = append(fired, "first") }, 0))
	require.NoError(t, p.AddWork(func() { fired = append(fired, "second") }, 0))

	require.Equal(t, 1, p.RemoveScheduledWork(1))
	p.Poll(nil)
	require.Equal(t, []string{"second"}, fired)
}

func TestRemoveScheduledWorkCounts(t *testing.T) {
	p := newInlineProactor(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.AddWork(func() {}, time.Hour))
	}
	require.Equal(t, 3, p.ScheduledWork())
	require.Equal(t, 2, p.RemoveScheduledWork(2))
	require.Equal(t, 1, p.ScheduledWork())
	require.Equal(t, 1, p.RemoveScheduledWork(-1))
	require.Equal(t, 0, p.ScheduledWork())
	require.Equal(t, 0, p.RemoveScheduledWork(5))
}

func TestRemoveWorkClearsBothLists(t *testing.T) {
	p := newInlineProactor(t)

	require.NoError(t, p.AddWork(func() {}, time.Hour))
	require.NoError(t, p.AddWork(func() {}, PermanentCompletionHandler))
	p.RemoveWork()
	require.Equal(t, 0, p.ScheduledWork())
	require.Equal(t, 0, p.PermanentWork())
}

func TestRunOneExecutesSingleHandler(t *testing.T) {
	p := newInlineProactor(t)

	fired := 0
	require.NoError(t, p.AddWork(func() { fired++ }, 0))
	require.Equal(t, 1, p.RunOne())
	require.Equal(t, 1, fired)
}

func TestRunOneReportsPanicAsFailure(t *testing.T) {
	p := newInlineProactor(t)

	require.NoError(t, p.AddWork(func() { panic("boom") }, 0))
	require.Equal(t, 0, p.RunOne())

	// the poisoned item is gone, the loop stays usable
	fired := 0
	require.NoError(t, p.AddWork(func() { fired++ }, 0))
	require.Equal(t, 1, p.RunOne())
	require.Equal(t, 1, fired)
}
