package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrader/models"
)

type flakyJob struct {
	name     string
	failures int32
	calls    atomic.Int32
}

func (j *flakyJob) Name() string     { return j.name }
func (j *flakyJob) Schedule() string { return "0 0 9 * * *" }

func (j *flakyJob) Run(context.Context) error {
	if j.calls.Add(1) <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func TestRunNowRetries(t *testing.T) {
	s := New(nil, WithRetries(2, time.Millisecond))
	job := &flakyJob{name: "flaky", failures: 2}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow("flaky")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Empty(t, res.Error)
}

func TestRunNowGivesUp(t *testing.T) {
	s := New(nil, WithRetries(1, time.Millisecond))
	require.NoError(t, s.AddJob(&flakyJob{name: "broken", failures: 100}))

	res, err := s.RunNow("broken")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "transient", res.Error)

	_, err = s.RunNow("missing")
	assert.ErrorContains(t, err, "not found")
}

func TestAddJobValidation(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddJob(&flakyJob{name: "a"}))
	assert.ErrorContains(t, s.AddJob(&flakyJob{name: "a"}), "already exists")
	assert.ErrorContains(t, s.AddJob(badSchedule{}), "failed to schedule")

	require.NoError(t, s.RemoveJob("a"))
	assert.ErrorContains(t, s.RemoveJob("a"), "not found")
}

type badSchedule struct{}

func (badSchedule) Name() string              { return "bad" }
func (badSchedule) Schedule() string          { return "every tuesday" }
func (badSchedule) Run(context.Context) error { return nil }

func TestStats(t *testing.T) {
	s := New(nil, WithRetries(0, 0))
	require.NoError(t, s.AddJob(&flakyJob{name: "b", failures: 1}))
	require.NoError(t, s.AddJob(&flakyJob{name: "a"}))

	for range 4 {
		_, _ = s.RunNow("b")
	}
	stats := s.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "a", stats[0].JobName)
	assert.Zero(t, stats[0].TotalRuns)
	assert.Nil(t, stats[0].LastRun)

	b := stats[1]
	assert.Equal(t, 4, b.TotalRuns)
	assert.Equal(t, 1, b.FailureCount)
	assert.Equal(t, 0.75, b.SuccessRate)
	assert.NotNil(t, b.LastRun)
	assert.Empty(t, b.LastError)
}

func TestHistoryIsBounded(t *testing.T) {
	h := &JobHistory{}
	for i := range historyLimit + 5 {
		h.AddResult(JobResult{Attempts: i})
	}
	assert.Len(t, h.Results, historyLimit)
	assert.Equal(t, historyLimit+4, h.Latest(1)[0].Attempts)
	assert.Empty(t, (&JobHistory{}).Latest(3))
}

func TestStopCancelsRetries(t *testing.T) {
	s := New(nil, WithRetries(5, time.Hour))
	job := &flakyJob{name: "slow", failures: 100}
	require.NoError(t, s.AddJob(job))

	done := make(chan JobResult, 1)
	go func() {
		res, _ := s.RunNow("slow")
		done <- res
	}()

	require.Eventually(t, func() bool {
		return job.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	select {
	case res := <-done:
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "scheduler stopped")
	case <-time.After(time.Second):
		t.Fatal("job did not stop")
	}
}

func TestWatchlistJob(t *testing.T) {
	var seen []models.RunRequest
	runner := RunnerFunc(func(_ context.Context, req models.RunRequest) (*models.RunResult, error) {
		seen = append(seen, req)
		if req.Ticker == "BAD" {
			return nil, errors.New("invalid ticker")
		}
		return &models.RunResult{Ticker: req.Ticker, Status: models.RunDecisionOnly}, nil
	})

	var results []string
	template := models.RunRequest{AvailableCapital: 5000, RiskTolerance: models.ToleranceConservative}
	job := NewWatchlistJob("0 0 9 * * *", []string{"AAPL", "BAD", "MSFT"}, template, runner,
		OnResult(func(r *models.RunResult) { results = append(results, r.Ticker) }))

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD: invalid ticker")
	assert.Equal(t, []string{"AAPL", "MSFT"}, results)
	require.Len(t, seen, 3)
	assert.Equal(t, 5000.0, seen[2].AvailableCapital)
	assert.Equal(t, models.ToleranceConservative, seen[2].RiskTolerance)

	assert.ErrorContains(t, NewWatchlistJob("@daily", nil, template, runner).Run(context.Background()), "empty")
}
