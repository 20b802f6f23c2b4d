package message

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oasislabs/protorpc/errors"
)

// wireUp builds a sender whose blocking transport calls straight into
// bound's handler, with no network involved: the two cores only ever
// see each other's encoded frames.
func wireUp(t *testing.T, protocol *Protocol, bound *BoundMessageReceiver, senderProps MessageSenderProperties) *BoundMessageSender {
	senderProps.Protocol = protocol
	senderProps.Transport = func(obj interface{}, frame string) (string, error) {
		return bound.HandleRawMessage(frame, true)
	}

	return NewMessageSender(senderProps).Bind(nil)
}

func s1Protocol(t *testing.T, props ProtocolProperties) *Protocol {
	props.Messages = []MessageDescriptor{
		{ID: 0, New: func() Message { return &m1{} }, ResponseIDs: []int{1}},
	}
	props.Responses = []ResponseDescriptor{
		{ID: 1, New: func() Response { return &r1{} }},
	}
	return testProtocol(t, props)
}

func s1Handler(t *testing.T) *BoundMessageReceiver {
	protocol := s1Protocol(t, ProtocolProperties{TrustedSender: true})

	receiver := NewMessageReceiver(MessageReceiverProperties{Protocol: protocol})
	assert.NoError(t, receiver.Register(0, []int{1}, func(ctx context.Context, obj interface{}, msg Message) (Response, error) {
		ping := msg.(*m1)
		switch ping.Ival {
		case 0:
			return &r1{Bval: true}, nil
		case 1:
			return nil, errors.CleanError{Message: "Testing Clean Error"}
		case 2:
			return nil, assertErr("boom")
		default:
			return nil, nil
		}
	}))
	assert.NoError(t, receiver.Validate())

	return receiver.Bind(nil)
}

// S1: successful round-trip.
func TestScenarioS1Success(t *testing.T) {
	protocol := s1Protocol(t, ProtocolProperties{TrustedSender: true})
	bound := s1Handler(t)
	sender := wireUp(t, protocol, bound, MessageSenderProperties{})

	resp, err := sender.Send(&m1{Ival: 0})
	assert.NoError(t, err)
	assert.Equal(t, &r1{Bval: true}, resp)
}

// S2: clean error round-trips with its exact message.
func TestScenarioS2CleanError(t *testing.T) {
	protocol := s1Protocol(t, ProtocolProperties{TrustedSender: true})
	bound := s1Handler(t)
	sender := wireUp(t, protocol, bound, MessageSenderProperties{})

	_, err := sender.Send(&m1{Ival: 1})
	assert.Equal(t, errors.CleanError{Message: "Testing Clean Error"}, err)
}

// S3: any other handler failure crosses as a remote-error, trace present
// iff the protocol was built with TrustedSender.
func TestScenarioS3RuntimeErrorTrusted(t *testing.T) {
	protocol := s1Protocol(t, ProtocolProperties{TrustedSender: true})
	bound := s1Handler(t)
	sender := wireUp(t, protocol, bound, MessageSenderProperties{})

	_, err := sender.Send(&m1{Ival: 2})
	remote, ok := err.(errors.RemoteError)
	assert.True(t, ok)
	assert.Contains(t, remote.Message, "boom")
	assert.True(t, remote.HasTrace)
}

func TestScenarioS3RuntimeErrorUntrusted(t *testing.T) {
	protocol := s1Protocol(t, ProtocolProperties{TrustedSender: false})

	receiver := NewMessageReceiver(MessageReceiverProperties{Protocol: protocol})
	assert.NoError(t, receiver.Register(0, []int{1}, func(ctx context.Context, obj interface{}, msg Message) (Response, error) {
		return nil, assertErr("boom")
	}))
	assert.NoError(t, receiver.Validate())
	bound := receiver.Bind(nil)

	sender := wireUp(t, protocol, bound, MessageSenderProperties{})

	_, err := sender.Send(&m1{Ival: 2})
	remote, ok := err.(errors.RemoteError)
	assert.True(t, ok)
	assert.Contains(t, remote.Message, "boom")
	assert.False(t, remote.HasTrace)
}

// S4: a message id the receiver's protocol doesn't know about encodes a
// runtime-kind error envelope by default — protocol drift is never
// swallowed silently — and, when the receiver opts into raising
// instead, surfaces *UnregisteredMessageIDError directly to the caller
// of HandleRawMessage so it can decide what to do with the raw frame
// (forward it elsewhere, log it) rather than an error envelope ever
// reaching the wire. The extended message is hand-built as a raw frame,
// the way a sender running a newer protocol that the receiver hasn't
// caught up to would produce one.
func TestScenarioS4ProtocolDriftDefaultEncodesErrorEnvelope(t *testing.T) {
	protocol := s1Protocol(t, ProtocolProperties{})
	receiver := NewMessageReceiver(MessageReceiverProperties{Protocol: protocol})
	assert.NoError(t, receiver.Register(0, []int{1}, func(ctx context.Context, obj interface{}, msg Message) (Response, error) {
		return &r1{Bval: true}, nil
	}))
	assert.NoError(t, receiver.Validate())
	bound := receiver.Bind(nil)

	frame := `{"t":3,"m":{"sval2":"blargh"}}`

	respFrame, err := bound.HandleRawMessage(frame, false)
	assert.NoError(t, err)

	decoded, err := protocol.DecodeDict(respFrame)
	assert.NoError(t, err)
	assert.True(t, IsErrorEnvelope(decoded))

	remote := protocol.ErrorFromDict(decoded)
	assert.IsType(t, errors.RemoteError{}, remote)
}

func TestScenarioS4ProtocolDriftRaiseOptInReturnsToCaller(t *testing.T) {
	protocol := s1Protocol(t, ProtocolProperties{})
	receiver := NewMessageReceiver(MessageReceiverProperties{Protocol: protocol})
	assert.NoError(t, receiver.Register(0, []int{1}, func(ctx context.Context, obj interface{}, msg Message) (Response, error) {
		return &r1{Bval: true}, nil
	}))
	assert.NoError(t, receiver.Validate())
	bound := receiver.Bind(nil)

	frame := `{"t":3,"m":{"sval2":"blargh"}}`

	respFrame, err := bound.HandleRawMessage(frame, true)
	assert.Equal(t, "", respFrame)
	unreg, ok := err.(*UnregisteredMessageIDError)
	assert.True(t, ok)
	assert.Equal(t, 3, unreg.ID)
}

// S5: the suspending sender/receiver pair round-trips the same as the
// blocking pair.
func TestScenarioS5AsyncRoundTrip(t *testing.T) {
	protocol := s1Protocol(t, ProtocolProperties{TrustedSender: true})
	bound := s1Handler(t)

	sender := NewMessageSender(MessageSenderProperties{
		Protocol: protocol,
		AsyncTransport: func(ctx context.Context, obj interface{}, frame string) (string, error) {
			return bound.HandleRawMessageAsync(ctx, frame, true)
		},
	}).Bind(nil)

	resp, err := sender.SendAsync(context.Background(), &m1{Ival: 0})
	assert.NoError(t, err)
	assert.Equal(t, &r1{Bval: true}, resp)
}

// S6: a sidecar value set by the sender's encode filter survives a round
// trip through both filters unchanged. The receiver's decode filter
// reads the sidecar off the inbound envelope and stashes it in a
// variable its own encode filter closes over, since the two filters
// only ever see one side of the exchange each.
func TestScenarioS6SidecarFilters(t *testing.T) {
	protocol := s1Protocol(t, ProtocolProperties{TrustedSender: true})

	var sidecar interface{}

	receiver := NewMessageReceiver(MessageReceiverProperties{
		Protocol: protocol,
		DecodeFilter: func(envelope map[string]interface{}, record interface{}) {
			sidecar = envelope["_sidecar_data"]
		},
		EncodeFilter: func(record interface{}, envelope map[string]interface{}) {
			envelope["_sidecar_data"] = sidecar
		},
	})
	assert.NoError(t, receiver.Register(0, []int{1}, func(ctx context.Context, obj interface{}, msg Message) (Response, error) {
		return &r1{Bval: true}, nil
	}))
	assert.NoError(t, receiver.Validate())
	bound := receiver.Bind(nil)

	var observed interface{}

	sender := NewMessageSender(MessageSenderProperties{
		Protocol: protocol,
		Transport: func(obj interface{}, frame string) (string, error) {
			return bound.HandleRawMessage(frame, true)
		},
		EncodeFilter: func(record interface{}, envelope map[string]interface{}) {
			envelope["_sidecar_data"] = float64(198)
		},
		DecodeFilter: func(envelope map[string]interface{}, record interface{}) {
			observed = envelope["_sidecar_data"]
		},
	}).Bind(nil)

	_, err := sender.Send(&m1{Ival: 0})
	assert.NoError(t, err)
	assert.Equal(t, float64(198), observed)
}
