package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/campus-rooms/internal/testfixtures"
)

type completerStub struct {
	calls atomic.Int64
	n     int64
	err   error
}

func (c *completerStub) CompleteElapsedBookings(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep ran without a deadline")
	}
	return c.n, c.err
}

type recorderStub struct{ total atomic.Int64 }

func (r *recorderStub) BookingsCompleted(n int64) { r.total.Add(n) }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepRecordsCompletions(t *testing.T) {
	t.Parallel()

	completer := &completerStub{n: 4}
	recorder := &recorderStub{}
	s := NewSweeper(completer, time.Minute, discard()).WithRecorder(recorder)

	assert.Equal(t, int64(4), s.Sweep(context.Background()))
	assert.Equal(t, int64(4), recorder.total.Load())
}

func TestSweepCompletesBookingsAsClockAdvances(t *testing.T) {
	t.Parallel()

	svc := testfixtures.NewServices(t)
	owner := svc.SeedUser(t, testfixtures.NewUserFixture())
	room := svc.SeedRoom(t, testfixtures.NewRoomFixture())
	booking := svc.SeedBooking(t, owner, testfixtures.NewBookingFixture(room.ID))
	svc.SeedBooking(t, owner, testfixtures.NewBookingFixture(room.ID))

	recorder := &recorderStub{}
	s := NewSweeper(svc.Bookings, time.Minute, discard()).WithRecorder(recorder)

	assert.Zero(t, s.Sweep(context.Background()))

	svc.Clock.Elapse(booking)
	assert.Equal(t, int64(1), s.Sweep(context.Background()))
	assert.Zero(t, s.Sweep(context.Background()), "completed bookings are not swept twice")

	svc.Clock.Advance(24 * time.Hour)
	assert.Equal(t, int64(1), s.Sweep(context.Background()))
	assert.Equal(t, int64(2), recorder.total.Load())
}

func TestSweepSwallowsErrors(t *testing.T) {
	t.Parallel()

	completer := &completerStub{err: errors.New("database locked")}
	recorder := &recorderStub{}
	s := NewSweeper(completer, time.Minute, discard()).WithRecorder(recorder)

	assert.Zero(t, s.Sweep(context.Background()))
	assert.Zero(t, recorder.total.Load())
}

func TestRunStopsWithContext(t *testing.T) {
	t.Parallel()

	completer := &completerStub{n: 1}
	s := NewSweeper(completer, 10*time.Millisecond, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return completer.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}

func TestNewSweeperDefaults(t *testing.T) {
	t.Parallel()

	s := NewSweeper(&completerStub{}, 0, nil)
	assert.Equal(t, 5*time.Minute, s.interval)
	assert.Equal(t, time.Minute, s.timeout)
}
