// Package mem is an in-process transport that bridges a
// message.MessageSender and a message.MessageReceiver through a
// buffered channel, grounded on the teacher's mqueue/core.Element
// (a value paired with an offset). Each request wraps its frame in an
// Element and carries its own reply channel beside it; the Element's
// Offset is left at zero and only appears in error messages, since a
// direct request/response bridge has no need for the teacher's
// offset-addressed replay semantics.
package mem

import (
	"context"
	"fmt"

	"github.com/oasislabs/protorpc/concdispatch"
	"github.com/oasislabs/protorpc/mqueue/core"
)

// Bridge is a single-receiver, many-sender in-process transport. It is
// the simplest possible backing for message.MessageSenderProperties.Transport
// / AsyncTransport: every call is a direct handoff, with no network and
// no serialization boundary beyond the frame string itself.
type Bridge struct {
	requests chan request
}

type request struct {
	frame core.Element
	reply chan reply
}

type reply struct {
	frame string
	err   error
}

// Handle is invoked once per inbound request with the raw frame; it
// should decode, dispatch, and return the raw response frame — in
// practice a *message.BoundMessageReceiver.HandleRawMessage/Async.
type Handle func(ctx context.Context, frame string) (string, error)

// NewBridge creates a Bridge with the given inbound buffer size.
func NewBridge(buffer int) *Bridge {
	return &Bridge{requests: make(chan request, buffer)}
}

// Serve runs handle against every request sent through the bridge until
// ctx is cancelled. It is meant to run in its own goroutine for the
// lifetime of the process hosting the receiver.
func (b *Bridge) Serve(ctx context.Context, handle Handle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-b.requests:
			frame, ok := req.frame.Value.(string)
			if !ok {
				req.reply <- reply{err: fmt.Errorf("transport/mem: non-string frame at offset %d", req.frame.Offset)}
				continue
			}

			respFrame, err := handle(ctx, frame)
			req.reply <- reply{frame: respFrame, err: err}
		}
	}
}

// ServeConcurrent is Serve's concurrent counterpart: every inbound
// request is submitted to pool instead of handled inline, so a slow
// handler invocation no longer head-of-line blocks requests behind it.
// This is safe precisely because each request already carries its own
// reply channel — unlike transport/redis's single shared response list,
// nothing here depends on replies being produced in request order.
func (b *Bridge) ServeConcurrent(ctx context.Context, handle Handle, pool *concdispatch.Pool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-b.requests:
			req := req
			frame, ok := req.frame.Value.(string)
			if !ok {
				req.reply <- reply{err: fmt.Errorf("transport/mem: non-string frame at offset %d", req.frame.Offset)}
				continue
			}

			// Submit blocks until a worker finishes the job, so it runs
			// on its own goroutine: the dispatch loop above must stay
			// free to keep pulling requests off the channel, with the
			// pool itself bounding how many run at once. The job always
			// reports nil to Submit — it has already delivered its
			// outcome on req.reply — so Submit's own error only ever
			// reflects a pool-level failure (ctx cancelled, pool
			// stopped), never a handler failure.
			go func() {
				if err := pool.Submit(ctx, func(ctx context.Context) error {
					respFrame, err := handle(ctx, frame)
					req.reply <- reply{frame: respFrame, err: err}
					return nil
				}); err != nil {
					req.reply <- reply{err: err}
				}
			}()
		}
	}
}

// Send implements message.TransportFunc. obj is ignored: a Bridge
// serves exactly one receiver, so the transport needs no per-object
// routing.
func (b *Bridge) Send(_ interface{}, frame string) (string, error) {
	return b.SendAsync(context.Background(), nil, frame)
}

// SendAsync implements message.AsyncTransportFunc.
func (b *Bridge) SendAsync(ctx context.Context, _ interface{}, frame string) (string, error) {
	replyCh := make(chan reply, 1)

	req := request{frame: core.Element{Value: frame}, reply: replyCh}

	select {
	case b.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-replyCh:
		return r.frame, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
