package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
}

func (j *countingJob) Name() string              { return j.name }
func (j *countingJob) Schedule() string          { return "@hourly" }
func (j *countingJob) Run(context.Context) error { j.runs.Add(1); return nil }

func TestScheduler_AddJobRejectsDuplicates(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob(&countingJob{name: "sweep"}))
	assert.Error(t, s.AddJob(&countingJob{name: "sweep"}))
	assert.Contains(t, s.Jobs(), "sweep")
}

func TestScheduler_RunJobImmediate(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "sweep"}
	require.NoError(t, s.AddJob(job))

	assert.Error(t, s.RunJob("missing"))
	require.NoError(t, s.RunJob("sweep"))

	assert.Eventually(t, func() bool {
		return job.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		history, err := s.History("sweep")
		return err == nil && history.Last() != nil && history.Last().Success
	}, time.Second, 10*time.Millisecond)
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyCap+20; i++ {
		h.AddResult(JobResult{JobName: "sweep", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, historyCap)
	assert.InDelta(t, 0.5, h.SuccessRate(), 0.01)
}
