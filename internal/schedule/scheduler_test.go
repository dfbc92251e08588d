package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedJob struct {
	name string
	runs int
}

func (j *namedJob) Name() string { return j.name }

func (j *namedJob) Run(ctx context.Context) error {
	j.runs++
	return nil
}

func TestAddJobValidatesSpec(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&namedJob{name: "reaper"}, "*/10 * * * *"))
	require.Error(t, s.AddJob(&namedJob{name: "reaper"}, "*/5 * * * *"))
	require.Error(t, s.AddJob(&namedJob{name: "broken"}, "every minute"))
	require.NoError(t, s.AddJob(&namedJob{name: "hourly"}, "@hourly"))
	require.ElementsMatch(t, []string{"reaper", "hourly"}, s.Jobs())
}

func TestWrapSkipsAfterCancel(t *testing.T) {
	s := NewCronScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer s.Stop()

	job := &namedJob{name: "reaper"}
	tick := s.wrap(job, "*/10 * * * *")
	tick()
	require.Equal(t, 1, job.runs)
	cancel()
	tick()
	require.Equal(t, 1, job.runs)
}
