package redisstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/remote"
	"github.com/pkordes/missionmap/internal/remote/redisstore"
	"github.com/pkordes/missionmap/testutil"
)

func envelope(rev int64, writer string) domain.Envelope {
	doc := domain.Empty()
	doc.MarkerLibrary = []domain.LibraryEntry{{ID: "lib-1", Label: "Fórum", Color: "#2563eb"}}
	return domain.Envelope{
		Stamp:     domain.Stamp{Revision: rev, Writer: writer},
		UpdatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Document:  doc,
	}
}

func TestStore_UpsertAndFetch(t *testing.T) {
	_, client := testutil.NewRedis(t)
	s := redisstore.New(client)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "AM-1", envelope(4, "dev-a")))

	got, err := s.Fetch(ctx, "AM-1")
	require.NoError(t, err)
	assert.Equal(t, envelope(4, "dev-a"), got)
}

func TestStore_FetchAbsent(t *testing.T) {
	_, client := testutil.NewRedis(t)

	_, err := redisstore.New(client).Fetch(context.Background(), "AM-none")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestStore_FetchBareDocument covers slots written by older clients that
// stored the document without an envelope.
func TestStore_FetchBareDocument(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	require.NoError(t, mr.Set("missionmap:doc:AM-1", `{"regionRecords":{},"markerLibrary":[]}`))

	got, err := redisstore.New(client).Fetch(context.Background(), "AM-1")

	require.NoError(t, err)
	assert.True(t, got.Stamp.IsZero())
	assert.Empty(t, got.Document.Regions)
}

func TestStore_wrongPasswordIsAuthError(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	mr.RequireAuth("secret")

	err := redisstore.New(client).Upsert(context.Background(), "AM-1", envelope(1, "a"))

	assert.ErrorIs(t, err, remote.ErrAuth)
}

func TestStore_serverDownIsRetryable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	err := redisstore.New(client).Upsert(context.Background(), "AM-1", envelope(1, "a"))

	assert.True(t, remote.IsRetryable(err), "got %v", err)
}

func TestChannel_receivesPublishedEnvelopes(t *testing.T) {
	_, client := testutil.NewRedis(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []domain.Stamp
	sub, err := redisstore.NewChannel(client, nil).Subscribe(ctx, "AM-1", func(env domain.Envelope) {
		mu.Lock()
		got = append(got, env.Stamp)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	s := remote.Notifying(redisstore.New(client), redisstore.New(client), nil)
	require.NoError(t, s.Upsert(ctx, "AM-2", envelope(7, "other")))
	require.NoError(t, s.Upsert(ctx, "AM-1", envelope(1, "dev-b")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.Stamp{Revision: 1, Writer: "dev-b"}, got[0])
}

func TestChannel_unsubscribeIsIdempotent(t *testing.T) {
	mr, client := testutil.NewRedis(t)

	sub, err := redisstore.NewChannel(client, nil).Subscribe(context.Background(), "AM-1", func(domain.Envelope) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("missionmap:changes:AM-1")["missionmap:changes:AM-1"] == 1
	}, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
}
