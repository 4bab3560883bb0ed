package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type storedCart struct {
	status    Status
	createdAt time.Time
}

type mockExpiryRepo struct {
	carts   []*storedCart
	cutoffs []time.Time
	err     error
}

func (m *mockExpiryRepo) ExpireActiveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, c := range m.carts {
		if c.status == StatusActive && c.createdAt.Before(cutoff) {
			c.status = StatusExpired
			n++
		}
	}
	return n, nil
}

func TestExpirer_Expire(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	old := &storedCart{status: StatusActive, createdAt: now.Add(-31 * 24 * time.Hour)}
	fresh := &storedCart{status: StatusActive, createdAt: now.Add(-29 * 24 * time.Hour)}
	ordered := &storedCart{status: StatusOrdered, createdAt: now.Add(-60 * 24 * time.Hour)}
	repo := &mockExpiryRepo{carts: []*storedCart{old, fresh, ordered}}

	e := NewExpirer(repo, 0, zap.NewNop())
	e.now = func() time.Time { return now }

	n, err := e.Expire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, now.Add(-DefaultMaxAge), repo.cutoffs[0])
	assert.Equal(t, StatusExpired, old.status)
	assert.Equal(t, StatusActive, fresh.status)
	assert.Equal(t, StatusOrdered, ordered.status)

	n, err = e.Expire(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpirer_CustomMaxAge(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	repo := &mockExpiryRepo{}
	e := NewExpirer(repo, time.Hour, zap.NewNop())
	e.now = func() time.Time { return now }

	_, err := e.Expire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Hour), repo.cutoffs[0])
}

func TestExpirer_Error(t *testing.T) {
	dbErr := errors.New("connection refused")
	e := NewExpirer(&mockExpiryRepo{err: dbErr}, 0, zap.NewNop())

	_, err := e.Expire(context.Background())
	assert.ErrorIs(t, err, dbErr)
}

func TestExpirer_RunStopsOnCancel(t *testing.T) {
	repo := &mockExpiryRepo{}
	e := NewExpirer(repo, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
