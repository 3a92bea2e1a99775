package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarningsTracker/internal/domain"
)

type fakeDriver struct {
	jobs    map[string]func(time.Time)
	started bool
	stopped bool
	err     error
}

func (d *fakeDriver) Schedule(spec string, job func(time.Time)) error {
	if d.err != nil {
		return d.err
	}
	if d.jobs == nil {
		d.jobs = make(map[string]func(time.Time))
	}
	d.jobs[spec] = job
	return nil
}

func (d *fakeDriver) Start(context.Context) error {
	d.started = true
	return nil
}

func (d *fakeDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRegistersCheckAndSummaryJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(nil)
	c := h.coordinator(CycleConfig{AutoSend: false}, nil)
	driver := &fakeDriver{}

	s := NewScheduler(driver, c, ScheduleConfig{CheckSpec: "*/10 * * * *", SummarySpec: "0 8 * * *"})
	require.NoError(t, s.Start(ctx))
	require.True(t, driver.started)
	require.Len(t, driver.jobs, 2)

	driver.jobs["*/10 * * * *"](testNow)
	assert.Equal(t, int32(1), h.source.calls.Load())

	// Fires the next morning and must report the day the reports were accumulated.
	driver.jobs["0 8 * * *"](testNow.AddDate(0, 0, 1))
	require.Equal(t, 1, h.mailer.count())
	assert.Equal(t, "summary "+testNow.Format(domain.DateLayout), h.mailer.sent[0].subject)

	require.NoError(t, s.Stop(ctx))
	assert.True(t, driver.stopped)
}

func TestSchedulerPropagatesScheduleErrors(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{err: errors.New("bad spec")}
	s := NewScheduler(driver, newHarness(nil).coordinator(sendNow, nil), ScheduleConfig{CheckSpec: "nope"})

	require.EqualError(t, s.Start(context.Background()), "bad spec")
	assert.False(t, driver.started)
}

func TestSchedulerWithoutDriverIsNoop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, ScheduleConfig{})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
