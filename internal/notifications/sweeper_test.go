package notifications

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"tidepool/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepRepoStub struct {
	calls   atomic.Int64
	cutoffs chan time.Time
	deleted int64
	err     error
}

func (s *sweepRepoStub) DeleteReadOlderThan(_ context.Context, cutoff time.Time, _ int) (int64, error) {
	s.calls.Add(1)
	select {
	case s.cutoffs <- cutoff:
	default:
	}
	return s.deleted, s.err
}

func (s *sweepRepoStub) Create(context.Context, *models.Notification) error { return nil }
func (s *sweepRepoStub) ListByRecipient(context.Context, uint, int, int) ([]models.Notification, error) {
	return nil, nil
}
func (s *sweepRepoStub) MarkRead(context.Context, uint, uint) (*models.Notification, error) {
	return nil, nil
}
func (s *sweepRepoStub) DeleteMatching(context.Context, uint, uint, models.NotificationType, uint, uint) error {
	return nil
}
func (s *sweepRepoStub) DeleteForPost(context.Context, uint) error { return nil }

func TestSweeper_SweepsImmediatelyAndOnTicks(t *testing.T) {
	t.Parallel()

	repo := &sweepRepoStub{cutoffs: make(chan time.Time, 16), deleted: 3}
	sweeper := NewSweeper(repo).WithPolicy(DefaultRetention, 10*time.Millisecond, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// First sweep happens before the first tick.
	select {
	case cutoff := <-repo.cutoffs:
		expected := time.Now().Add(-DefaultRetention)
		assert.WithinDuration(t, expected, cutoff, 5*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("no immediate sweep")
	}

	// At least one tick-driven sweep follows.
	select {
	case <-repo.cutoffs:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick-driven sweep")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestSweeper_ErrorDoesNotStopLoop(t *testing.T) {
	t.Parallel()

	repo := &sweepRepoStub{cutoffs: make(chan time.Time, 16), err: models.NewInternalError(assert.AnError)}
	sweeper := NewSweeper(repo).WithPolicy(0, 10*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	require.Eventually(t, func() bool {
		return repo.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond, "sweeper should keep running after a failed sweep")
}
