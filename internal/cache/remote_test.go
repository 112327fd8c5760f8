package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachette-io/cachette/internal/config"
	"github.com/cachette-io/cachette/internal/events"
	"github.com/cachette-io/cachette/internal/types"
)

func newTestRemote(t *testing.T) (*RemoteCache, *miniredis.Miniredis, *events.Emitter) {
	t.Helper()
	mr := miniredis.RunT(t)
	emitter := events.NewEmitter()
	rc, err := NewRemoteCache("redis://"+mr.Addr(), config.ForTesting().Remote, emitter, nil)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc, mr, emitter
}

func TestNewRemoteCache(t *testing.T) {
	t.Run("rejects non-redis URLs", func(t *testing.T) {
		_, err := NewRemoteCache("http://somewhere", config.ForTesting().Remote, nil, nil)
		assert.ErrorIs(t, err, types.ErrInvalidURL)
	})

	t.Run("rejects malformed redis URLs", func(t *testing.T) {
		_, err := NewRemoteCache("redis://host:port:extra", config.ForTesting().Remote, nil, nil)
		assert.ErrorIs(t, err, types.ErrInvalidURL)
	})

	t.Run("survives an unreachable server", func(t *testing.T) {
		cfg := config.ForTesting().Remote
		cfg.ConnectionTimeout = 50 * time.Millisecond
		rc, err := NewRemoteCache("redis://127.0.0.1:1", cfg, nil, nil)
		require.NoError(t, err)
		defer rc.Close()

		assert.False(t, rc.IsAvailable())
		lastErr, at := rc.LastError()
		assert.Error(t, lastErr)
		assert.False(t, at.IsZero())
	})

	t.Run("becomes ready after a successful dial", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		assert.True(t, rc.IsAvailable())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, rc.IsReady(ctx))
	})
}

func TestRemoteGetSet(t *testing.T) {
	ctx := context.Background()

	t.Run("typed values survive the wire", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)

		for key, value := range map[string]any{
			"str":   "hello",
			"int":   int64(42),
			"float": 1.5,
			"bool":  true,
			"nil":   nil,
		} {
			require.True(t, rc.Set(ctx, key, value, time.Minute), "set %q", key)
			got, err := rc.Get(ctx, key)
			require.NoError(t, err, "get %q", key)
			assert.Equal(t, value, got, "round trip %q", key)
		}
	})

	t.Run("records survive with set and map members", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		value := map[string]any{
			"tags":  types.NewSet("a", "b"),
			"count": int64(3),
		}
		require.True(t, rc.Set(ctx, "record", value, time.Minute))

		got, err := rc.Get(ctx, "record")
		require.NoError(t, err)
		record, ok := got.(map[string]any)
		require.True(t, ok, "expected record, got %T", got)
		tags, ok := record["tags"].(types.Set)
		require.True(t, ok)
		assert.True(t, tags.Contains("a"))
	})

	t.Run("misses on absent key", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		_, err := rc.Get(ctx, "absent")
		assert.True(t, types.IsCacheMiss(err))
	})

	t.Run("refuses the absence sentinel and warns", func(t *testing.T) {
		rc, _, emitter := newTestRemote(t)
		warned := false
		emitter.On(events.EventWarn, func(args ...any) { warned = true })

		assert.False(t, rc.Set(ctx, "k", types.NoValue, time.Minute))
		assert.True(t, warned)
	})

	t.Run("large values warn but store", func(t *testing.T) {
		rc, _, emitter := newTestRemote(t)
		var warning string
		emitter.On(events.EventWarn, func(args ...any) {
			if len(args) > 0 {
				warning, _ = args[0].(string)
			}
		})

		big := strings.Repeat("x", config.ForTesting().Remote.LargeValueThreshold+1)
		assert.True(t, rc.Set(ctx, "big", big, time.Minute))
		assert.Contains(t, warning, "threshold")

		got, err := rc.Get(ctx, "big")
		require.NoError(t, err)
		assert.Equal(t, big, got)
	})

	t.Run("undecodable body reads as a miss", func(t *testing.T) {
		rc, mr, emitter := newTestRemote(t)
		warned := false
		emitter.On(events.EventWarn, func(args ...any) { warned = true })

		require.NoError(t, mr.Set("poisoned", errorPrefixForTest()+"{not json"))
		_, err := rc.Get(ctx, "poisoned")
		assert.True(t, types.IsCacheMiss(err))
		assert.True(t, warned)
	})
}

// errorPrefixForTest mirrors the codec's error marker so a test can plant an
// undecodable body directly in the store.
func errorPrefixForTest() string {
	return "6e64dcc4-81ae-4a30-8a34-52ef4da4a0f7:"
}

func TestRemoteGetTTL(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		assert.Equal(t, types.TTLMissing, rc.GetTTL(ctx, "absent").State)
	})

	t.Run("key without expiry", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		require.True(t, rc.Set(ctx, "forever", "v", 0))
		assert.Equal(t, types.TTLNone, rc.GetTTL(ctx, "forever").State)
	})

	t.Run("remaining lifetime", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		require.True(t, rc.Set(ctx, "k", "v", time.Minute))

		ttl := rc.GetTTL(ctx, "k")
		require.Equal(t, types.TTLRemaining, ttl.State)
		assert.Greater(t, ttl.Remaining, time.Duration(0))
		assert.LessOrEqual(t, ttl.Remaining, time.Minute)
	})

	t.Run("expiry is enforced by the store", func(t *testing.T) {
		rc, mr, _ := newTestRemote(t)
		require.True(t, rc.Set(ctx, "k", "v", time.Second))

		mr.FastForward(2 * time.Second)
		_, err := rc.Get(ctx, "k")
		assert.True(t, types.IsCacheMiss(err))
		assert.Equal(t, types.TTLMissing, rc.GetTTL(ctx, "k").State)
	})
}

func TestRemoteDeleteClearCount(t *testing.T) {
	ctx := context.Background()
	rc, _, _ := newTestRemote(t)

	require.True(t, rc.Set(ctx, "a", 1, 0))
	require.True(t, rc.Set(ctx, "b", 2, 0))

	count, err := rc.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, rc.Delete(ctx, "a"))
	_, err = rc.Get(ctx, "a")
	assert.True(t, types.IsCacheMiss(err))

	require.NoError(t, rc.Clear(ctx))
	count, err = rc.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRemoteDegradation(t *testing.T) {
	ctx := context.Background()

	t.Run("reads degrade to misses when the server drops", func(t *testing.T) {
		rc, mr, emitter := newTestRemote(t)
		require.True(t, rc.Set(ctx, "k", "v", 0))

		warned := false
		emitter.On(events.EventWarn, func(args ...any) { warned = true })

		mr.Close()
		_, err := rc.Get(ctx, "k")
		assert.True(t, types.IsCacheMiss(err))
		assert.True(t, warned)
	})

	t.Run("writes report failure when the server drops", func(t *testing.T) {
		rc, mr, _ := newTestRemote(t)
		mr.Close()
		assert.False(t, rc.Set(ctx, "k", "v", 0))
	})

	t.Run("repeated errors mark the tier unavailable", func(t *testing.T) {
		rc, mr, _ := newTestRemote(t)
		mr.Close()

		for i := 0; i < disconnectErrorThreshold; i++ {
			rc.Set(ctx, "k", "v", 0)
		}
		assert.False(t, rc.IsAvailable())

		// Once down, reads short-circuit to misses without touching the wire.
		_, err := rc.Get(ctx, "k")
		assert.True(t, types.IsCacheMiss(err))
	})

	t.Run("management operations propagate unavailability", func(t *testing.T) {
		rc, mr, _ := newTestRemote(t)
		mr.Close()
		for i := 0; i < disconnectErrorThreshold; i++ {
			rc.Set(ctx, "k", "v", 0)
		}

		assert.True(t, types.IsRemoteUnavailable(rc.Delete(ctx, "k")))
		assert.True(t, types.IsRemoteUnavailable(rc.Clear(ctx)))
		_, err := rc.ItemCount(ctx)
		assert.True(t, types.IsRemoteUnavailable(err))
	})
}

func TestRemoteLocking(t *testing.T) {
	ctx := context.Background()

	t.Run("locking is supported", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		assert.True(t, rc.IsLockingSupported())
	})

	t.Run("acquire and release", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		handle, err := rc.Lock(ctx, "lock__job", 5*time.Second, false)
		require.NoError(t, err)
		assert.Equal(t, "lock__job", handle.LockName())
		assert.True(t, handle.ExpiresAt().After(time.Now()))

		require.NoError(t, rc.Unlock(ctx, handle))

		handle2, err := rc.Lock(ctx, "lock__job", 5*time.Second, false)
		require.NoError(t, err)
		rc.Unlock(ctx, handle2)
	})

	t.Run("single-try contention fails fast", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		handle, err := rc.Lock(ctx, "lock__busy", time.Minute, false)
		require.NoError(t, err)
		defer rc.Unlock(ctx, handle)

		_, err = rc.Lock(ctx, "lock__busy", time.Minute, false)
		assert.True(t, types.IsLockTimeout(err))
	})

	t.Run("retrying contention exhausts attempts", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		handle, err := rc.Lock(ctx, "lock__held", time.Minute, false)
		require.NoError(t, err)
		defer rc.Unlock(ctx, handle)

		_, err = rc.Lock(ctx, "lock__held", time.Minute, true)
		assert.True(t, types.IsLockTimeout(err))
	})

	t.Run("unlock of a foreign handle fails", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		assert.ErrorIs(t, rc.Unlock(ctx, nil), types.ErrLockNotHeld)
	})

	t.Run("expired handle releases as a no-op", func(t *testing.T) {
		rc, mr, _ := newTestRemote(t)
		handle, err := rc.Lock(ctx, "lock__short", 50*time.Millisecond, false)
		require.NoError(t, err)

		mr.FastForward(time.Second)
		time.Sleep(60 * time.Millisecond)
		assert.NoError(t, rc.Unlock(ctx, handle))
	})

	t.Run("hasLock sees live prefixes only", func(t *testing.T) {
		rc, _, _ := newTestRemote(t)
		handle, err := rc.Lock(ctx, "lock__scan", time.Minute, false)
		require.NoError(t, err)

		got, err := rc.HasLock(ctx, "lock__")
		require.NoError(t, err)
		assert.True(t, got)

		got, err = rc.HasLock(ctx, "other__")
		require.NoError(t, err)
		assert.False(t, got)

		require.NoError(t, rc.Unlock(ctx, handle))
		got, err = rc.HasLock(ctx, "lock__")
		require.NoError(t, err)
		assert.False(t, got)
	})
}

func TestRemoteClose(t *testing.T) {
	ctx := context.Background()
	rc, _, _ := newTestRemote(t)

	require.True(t, rc.Set(ctx, "k", "v", 0))
	require.NoError(t, rc.Close())

	_, err := rc.Get(ctx, "k")
	assert.ErrorIs(t, err, types.ErrClosed)
	assert.False(t, rc.Set(ctx, "k", "v", 0))
	assert.ErrorIs(t, rc.Delete(ctx, "k"), types.ErrClosed)
	assert.NoError(t, rc.Close())
}
