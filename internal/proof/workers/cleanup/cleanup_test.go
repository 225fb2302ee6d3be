package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formproof/internal/proof/metrics"
	"formproof/internal/proof/qr"
	"formproof/internal/proof/store"
	"formproof/pkg/testutil"
)

func TestCleanupService_RunOnce(t *testing.T) {
	ctx := context.Background()
	now := testutil.FixedTime

	sessions := store.NewInMemoryStore()
	expired := testutil.NewSessionBuilder().WithID("expired").WithDefineID("7").
		ExpiresAt(now.Add(-10 * time.Minute)).Build()
	retained := testutil.NewSessionBuilder().WithID("retained").WithDefineID("8").
		ExpiresAt(now.Add(-time.Minute)).Build()
	noVerification := testutil.NewSessionBuilder().WithID("plain").WithoutVerification().
		ExpiresAt(now.Add(-10 * time.Minute)).Build()
	live := testutil.NewSessionBuilder().WithID("live").WithDefineID("9").
		ExpiresAt(now.Add(time.Minute)).Build()
	require.NoError(t, sessions.Save(ctx, expired))
	require.NoError(t, sessions.Save(ctx, retained))
	require.NoError(t, sessions.Save(ctx, noVerification))
	require.NoError(t, sessions.Save(ctx, live))

	cache := qr.NewCache()
	for _, id := range []string{"7", "8", "9"} {
		_, err := cache.GetOrRender(id, "https://verifier.example/s/"+id)
		require.NoError(t, err)
	}

	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	svc, err := New(sessions,
		WithRetention(5*time.Minute),
		WithQRCache(cache),
		WithMetrics(m),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	res, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedSessions)
	assert.Equal(t, 1, res.EvictedQRCodes)

	_, err = sessions.FindByID(ctx, "expired")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = sessions.FindByID(ctx, "retained")
	assert.NoError(t, err, "sessions inside the retention window are kept")

	_, ok := cache.Get("7")
	assert.False(t, ok)
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.SessionsExpired))
	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.QRCacheEntries))
}

type failingStore struct{}

func (failingStore) DeleteExpiredBefore(context.Context, time.Time) (int, []string, error) {
	return 0, nil, errors.New("redis: connection refused")
}

func TestCleanupService_RunOnceError(t *testing.T) {
	svc, err := New(failingStore{})
	require.NoError(t, err)

	_, err = svc.RunOnce(context.Background())
	assert.ErrorContains(t, err, "delete expired proof sessions")
}

func TestCleanupService_RequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestCleanupService_StartStopsOnCancel(t *testing.T) {
	svc, err := New(store.NewInMemoryStore(), WithCleanupInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Start(ctx), context.DeadlineExceeded)
}
