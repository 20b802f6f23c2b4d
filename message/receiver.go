package message

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/oasislabs/protorpc/errors"
	"github.com/oasislabs/protorpc/stats"
)

// Handler processes one registered message type and returns the
// response to send back. obj is the receiver-side instance the
// BoundMessageReceiver was created for (the analogue of
// BoundMessageSender's obj), giving a handler access to whatever
// per-instance state it needs without a closure.
type Handler func(ctx context.Context, obj interface{}, msg Message) (Response, error)

type handlerEntry struct {
	responseIDs map[int]struct{}
	handler     Handler
}

// MessageReceiver dispatches decoded messages to registered Handlers. A
// MessageReceiver is built incrementally with Register and then sealed
// with Validate; Bind is only meaningful after a successful Validate.
type MessageReceiver struct {
	protocol *Protocol

	mu       sync.Mutex
	sealed   bool
	handlers map[int]handlerEntry

	encodeFilter EncodeFilter
	decodeFilter DecodeFilter

	counters *stats.CounterGroup
	tracker  *stats.MethodTracker
}

// MessageReceiverProperties configures a new MessageReceiver.
type MessageReceiverProperties struct {
	Protocol     *Protocol
	EncodeFilter EncodeFilter
	DecodeFilter DecodeFilter
}

// NewMessageReceiver creates a new, unsealed MessageReceiver.
func NewMessageReceiver(props MessageReceiverProperties) *MessageReceiver {
	if props.Protocol == nil {
		panic("message: MessageReceiver requires a Protocol")
	}

	methods := make([]string, 0, len(props.Protocol.MessageIDs()))
	for _, id := range props.Protocol.MessageIDs() {
		methods = append(methods, strconv.Itoa(id))
	}

	return &MessageReceiver{
		protocol:     props.Protocol,
		handlers:     make(map[int]handlerEntry),
		encodeFilter: props.EncodeFilter,
		decodeFilter: props.DecodeFilter,
		counters:     stats.NewCounterGroup("ok", "clean_error", "runtime_error", "unregistered"),
		tracker: stats.NewMethodTrackerWithResult(&stats.MethodTrackerProps{
			Methods:    methods,
			Results:    []string{"ok", "clean_error", "runtime_error", "unregistered"},
			WindowSize: 64,
		}),
	}
}

// Stats reports how many handled frames fell into each outcome bucket:
// "ok", "clean_error", "runtime_error", "unregistered", plus a catch-all
// "undefined" bucket for anything else (see stats.CounterGroup).
func (r *MessageReceiver) Stats() map[string]interface{} {
	return r.counters.Stats()
}

// Latencies reports, per registered message type id, a count+latency
// breakdown of every handled frame for that type (see
// stats.MethodTracker), with the same "undefined" catch-all used for
// ids the protocol does not declare (the unregistered-message path).
func (r *MessageReceiver) Latencies() map[string]interface{} {
	return r.tracker.Stats()
}

// Register installs handler for messageTypeID. responseTypeIDs must
// equal exactly the response set the protocol declared for this
// message (EmptyResponseID may be omitted; it is always implied).
// Register fails if the receiver is already sealed, messageTypeID is
// not part of the protocol, a handler is already registered for it, or
// responseTypeIDs does not match the protocol's declared set.
func (r *MessageReceiver) Register(messageTypeID int, responseTypeIDs []int, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errors.New(errors.ErrHandlerAlreadyRegistered,
			fmt.Errorf("receiver is already sealed by Validate"))
	}

	declared, ok := r.protocol.ResponseSet(messageTypeID)
	if !ok {
		return errors.New(errors.ErrHandlerResponseMismatch,
			fmt.Errorf("message id %d is not part of the protocol", messageTypeID))
	}

	if _, exists := r.handlers[messageTypeID]; exists {
		return errors.New(errors.ErrHandlerAlreadyRegistered,
			fmt.Errorf("message id %d", messageTypeID))
	}

	declaredSet := make(map[int]struct{}, len(declared))
	for _, id := range declared {
		declaredSet[id] = struct{}{}
	}

	gotSet := map[int]struct{}{EmptyResponseID: {}}
	for _, id := range responseTypeIDs {
		gotSet[id] = struct{}{}
	}

	if len(gotSet) != len(declaredSet) {
		return errors.New(errors.ErrHandlerResponseMismatch,
			fmt.Errorf("message id %d: handler declares %d response types, protocol declares %d",
				messageTypeID, len(gotSet), len(declaredSet)))
	}
	for id := range gotSet {
		if _, ok := declaredSet[id]; !ok {
			return errors.New(errors.ErrHandlerResponseMismatch,
				fmt.Errorf("message id %d: handler declares unknown response id %d", messageTypeID, id))
		}
	}

	r.handlers[messageTypeID] = handlerEntry{responseIDs: gotSet, handler: handler}
	return nil
}

// Validate seals the receiver, checking that every message id the
// protocol declares has a registered handler. Validate is idempotent:
// calling it again after a successful call is a no-op.
func (r *MessageReceiver) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return nil
	}

	for _, id := range r.protocol.MessageIDs() {
		if _, ok := r.handlers[id]; !ok {
			return errors.New(errors.ErrHandlerTableIncomplete,
				fmt.Errorf("no handler registered for message id %d", id))
		}
	}

	r.sealed = true
	return nil
}

// Bind returns a BoundMessageReceiver threading obj through every
// handler invocation made on its behalf. Bind does not itself require
// Validate to have been called, but HandleRawMessage/HandleRawMessageAsync
// will fail fast if it hasn't.
func (r *MessageReceiver) Bind(obj interface{}) *BoundMessageReceiver {
	return &BoundMessageReceiver{receiver: r, obj: obj}
}

// BoundMessageReceiver pairs a MessageReceiver with the object it was
// bound to. Protocol-specialized shims (see messagegen) embed a
// BoundMessageReceiver as the glue between a transport and the
// generated per-message registration calls.
type BoundMessageReceiver struct {
	receiver *MessageReceiver
	obj      interface{}
}

// HandleRawMessage decodes frame, dispatches it to its registered
// handler, and returns the encoded response frame. A frame naming an
// id the protocol does not know about is, by default, answered with a
// runtime-kind error envelope rather than swallowed — protocol drift
// from an out-of-date sender must never pass silently. Passing
// raiseUnregistered=true switches to the opt-in policy instead: the
// *UnregisteredMessageIDError is returned directly to the caller of
// HandleRawMessage/HandleRawMessageAsync, so the transport itself can
// decide what to do with the raw frame (forward it elsewhere, log it,
// etc.) instead of an error envelope ever being encoded onto the wire.
func (r *BoundMessageReceiver) HandleRawMessage(frame string, raiseUnregistered bool) (string, error) {
	return r.handle(context.Background(), frame, raiseUnregistered, nil)
}

// HandleRawMessageAsync is the cooperative-suspension variant of
// HandleRawMessage. ctx is passed through to the handler, which is
// itself free to suspend on it.
func (r *BoundMessageReceiver) HandleRawMessageAsync(ctx context.Context, frame string, raiseUnregistered bool) (string, error) {
	return r.handle(ctx, frame, raiseUnregistered, ctx)
}

// handle is shared by the blocking and suspending entry points; async
// is non-nil only for the suspending path, purely to make the call site
// self-documenting about which mode is active.
func (r *BoundMessageReceiver) handle(ctx context.Context, frame string, raiseUnregistered bool, async context.Context) (string, error) {
	if !r.receiver.sealed {
		return "", fmt.Errorf("message: receiver must be validated before handling messages")
	}

	protocol := r.receiver.protocol

	envelope, err := protocol.DecodeDict(frame)
	if err != nil {
		return "", err
	}

	msg, err := protocol.MessageFromDict(envelope)
	if err != nil {
		if unreg, ok := err.(*UnregisteredMessageIDError); ok {
			r.receiver.counters.Incr("unregistered")
			r.receiver.tracker.AddCount("undefined", "unregistered")
			if raiseUnregistered {
				return "", unreg
			}
			return r.encodeHandlerError(unreg)
		}
		return "", err
	}

	if r.receiver.decodeFilter != nil {
		r.receiver.decodeFilter(envelope, msg)
	}

	entry := r.receiver.handlers[msg.MessageTypeID()]

	methodKey := strconv.Itoa(msg.MessageTypeID())
	value, herr := r.receiver.tracker.InstrumentResult(methodKey, func() *stats.TrackResult {
		resp, err := r.invoke(ctx, entry.handler, msg)
		resultType := "ok"
		if err != nil {
			resultType = outcomeBucket(err)
		}
		return &stats.TrackResult{Value: resp, Error: err, Type: resultType}
	})

	if herr != nil {
		r.receiver.counters.Incr(outcomeBucket(herr))
		return r.encodeHandlerError(herr)
	}

	r.receiver.counters.Incr("ok")

	resp, _ := value.(Response)
	if resp == nil {
		resp = EmptyResponse{}
	}

	return r.encodeResponse(resp)
}

// outcomeBucket classifies a handler failure for the receiver's
// counters, mirroring the clean/runtime split Protocol.ErrorToDict
// encodes onto the wire.
func outcomeBucket(err error) string {
	switch err.(type) {
	case errors.CleanError, *errors.CleanError:
		return "clean_error"
	default:
		return "runtime_error"
	}
}

// invoke calls handler, converting any panic into a runtime-kind error
// so a single misbehaving handler can never take down the process
// hosting the receiver.
func (r *BoundMessageReceiver) invoke(ctx context.Context, handler Handler, msg Message) (resp Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errorFromHandlerPanic(rec)
		}
	}()

	return handler(ctx, r.obj, msg)
}

func errorFromHandlerPanic(rec interface{}) error {
	stacktrace := debug.Stack()

	switch x := rec.(type) {
	case string:
		return fmt.Errorf("message: handler panicked: %s\n%s", x, string(stacktrace))
	case error:
		return fmt.Errorf("message: handler panicked: %s\n%s", x.Error(), string(stacktrace))
	default:
		return fmt.Errorf("message: handler panicked: %+v\n%s", rec, string(stacktrace))
	}
}

func (r *BoundMessageReceiver) encodeResponse(resp Response) (string, error) {
	envelope, err := r.receiver.protocol.ResponseToDict(resp)
	if err != nil {
		return "", err
	}

	if r.receiver.encodeFilter != nil {
		r.receiver.encodeFilter(resp, envelope)
	}

	return r.receiver.protocol.EncodeDict(envelope)
}

func (r *BoundMessageReceiver) encodeHandlerError(err error) (string, error) {
	envelope := r.receiver.protocol.ErrorToDict(err)
	return r.receiver.protocol.EncodeDict(envelope)
}
