package message

import (
	"context"
	"fmt"

	"github.com/oasislabs/protorpc/errors"
)

// TransportFunc moves one encoded frame from sender to receiver and
// returns the encoded response frame. obj is the owning object the
// BoundMessageSender was created for, so a transport can recover
// per-instance connection state. The sender core never retries: a
// TransportFunc error is a local, non-remote failure and is propagated
// to the caller unchanged.
type TransportFunc func(obj interface{}, frame string) (string, error)

// AsyncTransportFunc is the cooperative-suspension variant of
// TransportFunc. ctx is the operation's only suspension point: the
// runtime holds no locks across the call, and cancelling ctx aborts the
// send with no receiver-side notification and no sender-side state to
// clean up.
type AsyncTransportFunc func(ctx context.Context, obj interface{}, frame string) (string, error)

// MessageSender sends typed messages through a Protocol over a
// caller-supplied transport. It is stateless per call; all per-send
// state lives on the stack of the call that produced it.
type MessageSender struct {
	protocol       *Protocol
	transport      TransportFunc
	asyncTransport AsyncTransportFunc
	encodeFilter   EncodeFilter
	decodeFilter   DecodeFilter
}

// MessageSenderProperties configures a new MessageSender. At least one
// of Transport/AsyncTransport must be set; a sender with only one mode
// configured still builds, but calling the unconfigured mode fails.
type MessageSenderProperties struct {
	Protocol       *Protocol
	Transport      TransportFunc
	AsyncTransport AsyncTransportFunc
	EncodeFilter   EncodeFilter
	DecodeFilter   DecodeFilter
}

// NewMessageSender creates a new MessageSender.
func NewMessageSender(props MessageSenderProperties) *MessageSender {
	if props.Protocol == nil {
		panic("message: MessageSender requires a Protocol")
	}

	return &MessageSender{
		protocol:       props.Protocol,
		transport:      props.Transport,
		asyncTransport: props.AsyncTransport,
		encodeFilter:   props.EncodeFilter,
		decodeFilter:   props.DecodeFilter,
	}
}

// Bind returns a BoundMessageSender threading obj through every
// transport call made on its behalf. This is the Go realization of the
// original descriptor-based "bound sender" design note: obj is supplied
// once, at bind time, rather than rediscovered per call.
func (s *MessageSender) Bind(obj interface{}) *BoundMessageSender {
	return &BoundMessageSender{sender: s, obj: obj}
}

// BoundMessageSender pairs a MessageSender with the object it was bound
// to. Protocol-specialized shims (see messagegen) embed a
// BoundMessageSender and add per-message-type overloads of Send that
// type-assert the returned Response.
type BoundMessageSender struct {
	sender *MessageSender
	obj    interface{}
}

// Send sends m over the sender's blocking transport and returns the
// decoded response. A nil Response with a nil error means the handler
// returned the empty response.
func (b *BoundMessageSender) Send(m Message) (Response, error) {
	if b.sender.transport == nil {
		return nil, fmt.Errorf("message: sender has no blocking transport configured")
	}

	frame, err := b.sender.encodeRequest(m)
	if err != nil {
		return nil, err
	}

	respFrame, err := b.sender.transport(b.obj, frame)
	if err != nil {
		return nil, err
	}

	return b.sender.decodeResponse(respFrame)
}

// SendAsync sends m over the sender's suspending transport. ctx is the
// operation's sole suspension point (the AsyncTransportFunc call);
// cancelling ctx aborts the send and the cancellation surfaces as ctx's
// own error.
func (b *BoundMessageSender) SendAsync(ctx context.Context, m Message) (Response, error) {
	if b.sender.asyncTransport == nil {
		return nil, fmt.Errorf("message: sender has no suspending transport configured")
	}

	frame, err := b.sender.encodeRequest(m)
	if err != nil {
		return nil, err
	}

	respFrame, err := b.sender.asyncTransport(ctx, b.obj, frame)
	if err != nil {
		return nil, err
	}

	return b.sender.decodeResponse(respFrame)
}

func (s *MessageSender) encodeRequest(m Message) (string, error) {
	envelope, err := s.protocol.MessageToDict(m)
	if err != nil {
		return "", err
	}

	if s.encodeFilter != nil {
		s.encodeFilter(m, envelope)
	}

	return s.protocol.EncodeDict(envelope)
}

func (s *MessageSender) decodeResponse(frame string) (Response, error) {
	envelope, err := s.protocol.DecodeDict(frame)
	if err != nil {
		return nil, err
	}

	if IsErrorEnvelope(envelope) {
		return nil, s.protocol.ErrorFromDict(envelope)
	}

	resp, err := s.protocol.ResponseFromDict(envelope)
	if err != nil {
		if unreg, ok := err.(*UnregisteredResponseIDError); ok {
			return nil, errors.RemoteError{Message: fmt.Sprintf("message: protocol drift: %s", unreg.Error())}
		}
		return nil, err
	}

	if s.decodeFilter != nil {
		s.decodeFilter(envelope, resp)
	}

	if _, isEmpty := resp.(EmptyResponse); isEmpty {
		return nil, nil
	}

	return resp, nil
}
