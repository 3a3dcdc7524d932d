package throttle

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRedis answers commands in-process and records what was sent.
type scriptedRedis struct {
	sent   [][]interface{}
	counts map[string]int64
}

func (h *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *scriptedRedis) ProcessHook(_ redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		h.sent = append(h.sent, cmd.Args())
		switch c := cmd.(type) {
		case *redis.Cmd:
			key := cmd.Args()[3].(string)
			h.counts[key]++
			c.SetVal(h.counts[key])
		case *redis.StringCmd:
			n, ok := h.counts[cmd.Args()[1].(string)]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(strconv.FormatInt(n, 10))
		case *redis.IntCmd:
			delete(h.counts, cmd.Args()[1].(string))
			c.SetVal(1)
		}
		return nil
	}
}

func (h *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newScriptedStore(t *testing.T) (*RedisStore, *scriptedRedis) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	hook := &scriptedRedis{counts: map[string]int64{}}
	client.AddHook(hook)
	return NewRedisStore(client), hook
}

func TestRedisStoreIncrSetsExpiryAtomically(t *testing.T) {
	ctx := context.Background()
	store, hook := newScriptedStore(t)

	n, err := store.Incr(ctx, "login:203.0.113.7", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.Incr(ctx, "login:203.0.113.7", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// One round trip per hit: the counter and its TTL never go out separately.
	require.Len(t, hook.sent, 2)
	for _, args := range hook.sent {
		assert.Equal(t, "evalsha", args[0])
		assert.Equal(t, "circle:throttle:login:203.0.113.7", args[3])
		assert.EqualValues(t, (15 * time.Minute).Milliseconds(), args[4])
	}
}

func TestRedisStoreCountAndReset(t *testing.T) {
	ctx := context.Background()
	store, _ := newScriptedStore(t)

	n, err := store.Count(ctx, "login:198.51.100.4")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Incr(ctx, "login:198.51.100.4", time.Minute)
	require.NoError(t, err)
	_, err = store.Incr(ctx, "login:198.51.100.4", time.Minute)
	require.NoError(t, err)

	n, err = store.Count(ctx, "login:198.51.100.4")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.Reset(ctx, "login:198.51.100.4"))
	n, err = store.Count(ctx, "login:198.51.100.4")
	require.NoError(t, err)
	assert.Zero(t, n)
}
