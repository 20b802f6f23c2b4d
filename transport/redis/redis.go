// Package redis is a cross-process transport backed by two redis
// lists, one per direction, grounded on the teacher's
// mqueue/redis.MQueue (a go-redis.Client wrapped behind the mailbox
// interface) but using plain LPUSH/BRPOP list operations instead of the
// teacher's offset-addressed Lua scripts: a request/response bridge
// only ever needs "hand this frame to whoever is waiting", not a
// replayable, offset-addressed log.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

const pollTimeout = 5 * time.Second

// Bridge is a redis-list-backed request/response transport. RequestKey
// carries frames from sender to receiver, ResponseKey carries the
// matching replies back.
type Bridge struct {
	client      *redis.Client
	requestKey  string
	responseKey string
}

// Props configures a new Bridge.
type Props struct {
	Addr        string
	RequestKey  string
	ResponseKey string
}

// NewBridge connects to a redis instance and returns a Bridge over the
// given list keys. The two ends of a conversation (sender process,
// receiver process) must agree on RequestKey/ResponseKey: the
// receiver's RequestKey is the sender's RequestKey, and likewise for
// ResponseKey.
func NewBridge(props Props) (*Bridge, error) {
	if len(props.RequestKey) == 0 || len(props.ResponseKey) == 0 {
		return nil, fmt.Errorf("transport/redis: RequestKey and ResponseKey must both be set")
	}

	client := redis.NewClient(&redis.Options{Addr: props.Addr})
	if err := client.Ping().Err(); err != nil {
		return nil, fmt.Errorf("transport/redis: failed to reach redis at %s: %w", props.Addr, err)
	}

	return &Bridge{client: client, requestKey: props.RequestKey, responseKey: props.ResponseKey}, nil
}

// Handle is invoked once per frame popped off RequestKey; its return
// value is pushed onto ResponseKey. In practice this wraps a
// *message.BoundMessageReceiver.HandleRawMessage/Async.
type Handle func(ctx context.Context, frame string) (string, error)

// Serve pops frames off RequestKey and pushes handle's result onto
// ResponseKey until ctx is cancelled. This transport has no
// correlation id: it assumes one receiver serving one sender's requests
// in strict order, matching the spec's "no session/multiplexing"
// non-goal.
func (b *Bridge) Serve(ctx context.Context, handle Handle) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := b.client.BRPop(pollTimeout, b.requestKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("transport/redis: BRPop on %s: %w", b.requestKey, err)
		}

		// result is [key, value]; BRPop blocks on a single key so index 1 is the frame.
		frame := result[1]

		respFrame, herr := handle(ctx, frame)
		if herr != nil {
			return herr
		}

		if err := b.client.LPush(b.responseKey, respFrame).Err(); err != nil {
			return fmt.Errorf("transport/redis: LPush on %s: %w", b.responseKey, err)
		}
	}
}

// Send implements message.TransportFunc.
func (b *Bridge) Send(_ interface{}, frame string) (string, error) {
	return b.SendAsync(context.Background(), nil, frame)
}

// SendAsync implements message.AsyncTransportFunc. Cancellation of ctx
// is only observed between redis calls, since the underlying BRPop
// timeout is not itself context-aware in this client version.
func (b *Bridge) SendAsync(ctx context.Context, _ interface{}, frame string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := b.client.LPush(b.requestKey, frame).Err(); err != nil {
		return "", fmt.Errorf("transport/redis: LPush on %s: %w", b.requestKey, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		result, err := b.client.BRPop(pollTimeout, b.responseKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("transport/redis: BRPop on %s: %w", b.responseKey, err)
		}

		return result[1], nil
	}
}

// Close releases the underlying redis client.
func (b *Bridge) Close() error {
	return b.client.Close()
}
