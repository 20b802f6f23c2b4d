package message

import (
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/oasislabs/protorpc/errors"
)

// errorSentinel is the reserved "t" value for an error envelope, carried
// instead of a numeric message/response id.
const errorSentinel = "_error"

// MessageDescriptor registers one message type with a Protocol.
type MessageDescriptor struct {
	// ID is the message's stable numeric identifier. Must be
	// non-negative and unique among a Protocol's messages.
	ID int

	// New returns a new, empty instance of the message's concrete type,
	// suitable for a PayloadCodec to decode into.
	New func() Message

	// ResponseIDs lists the response type ids this message may produce.
	// EmptyResponseID is always implicitly permitted and need not be
	// listed.
	ResponseIDs []int
}

// ResponseDescriptor registers one response type with a Protocol.
type ResponseDescriptor struct {
	// ID is the response's stable numeric identifier. Must be
	// non-negative and unique among a Protocol's responses.
	ID int

	// New returns a new, empty instance of the response's concrete
	// type, suitable for a PayloadCodec to decode into.
	New func() Response
}

// Protocol is an immutable registry of message and response types keyed
// by small integers, plus the per-message permitted-response sets. A
// Protocol is built once, validated at construction, and then freely
// shared across senders and receivers.
type Protocol struct {
	messagesByID  map[int]MessageDescriptor
	responsesByID map[int]ResponseDescriptor

	// responseSets is messagesByID[id].ResponseIDs as a set, with
	// EmptyResponseID always present, precomputed so Register/Validate
	// don't repeat the membership scan.
	responseSets map[int]map[int]struct{}

	codec PayloadCodec

	// TrustedSender controls whether a remote stack trace is attached
	// to runtime-kind error envelopes.
	TrustedSender bool

	// LogRemoteExceptions is an advisory flag a MessageReceiver consults
	// to decide whether to log a handler's runtime failure.
	LogRemoteExceptions bool
}

// ProtocolProperties are the inputs to NewProtocol.
type ProtocolProperties struct {
	Messages            []MessageDescriptor
	Responses           []ResponseDescriptor
	TrustedSender       bool
	LogRemoteExceptions bool

	// Codec defaults to DefaultPayloadCodec when nil.
	Codec PayloadCodec
}

// NewProtocol validates and builds a Protocol. It fails with an error
// (never a panic) if:
//   - a message or response id is negative or duplicated,
//   - a message declares a response id that is neither EmptyResponseID
//     nor present in Responses.
func NewProtocol(props ProtocolProperties) (*Protocol, error) {
	codec := props.Codec
	if codec == nil {
		codec = DefaultPayloadCodec{}
	}

	responsesByID := make(map[int]ResponseDescriptor, len(props.Responses))
	for _, r := range props.Responses {
		if r.ID == EmptyResponseID {
			return nil, errors.New(errors.ErrProtocolIDDuplicate,
				fmt.Errorf("response id %d is reserved for the empty response", r.ID))
		}
		if r.ID < 0 {
			return nil, errors.New(errors.ErrProtocolIDNegative, fmt.Errorf("response id %d", r.ID))
		}
		if _, exists := responsesByID[r.ID]; exists {
			return nil, errors.New(errors.ErrProtocolIDDuplicate, fmt.Errorf("response id %d", r.ID))
		}
		if r.New == nil {
			return nil, fmt.Errorf("message: response id %d has no factory", r.ID)
		}
		responsesByID[r.ID] = r
	}

	messagesByID := make(map[int]MessageDescriptor, len(props.Messages))
	responseSets := make(map[int]map[int]struct{}, len(props.Messages))
	for _, m := range props.Messages {
		if m.ID < 0 {
			return nil, errors.New(errors.ErrProtocolIDNegative, fmt.Errorf("message id %d", m.ID))
		}
		if _, exists := messagesByID[m.ID]; exists {
			return nil, errors.New(errors.ErrProtocolIDDuplicate, fmt.Errorf("message id %d", m.ID))
		}
		if m.New == nil {
			return nil, fmt.Errorf("message: message id %d has no factory", m.ID)
		}

		set := map[int]struct{}{EmptyResponseID: {}}
		for _, rid := range m.ResponseIDs {
			if rid == EmptyResponseID {
				continue
			}
			if _, ok := responsesByID[rid]; !ok {
				return nil, errors.New(errors.ErrProtocolUnrepresentableResponse,
					fmt.Errorf("message id %d declares response id %d", m.ID, rid))
			}
			set[rid] = struct{}{}
		}

		messagesByID[m.ID] = m
		responseSets[m.ID] = set
	}

	return &Protocol{
		messagesByID:        messagesByID,
		responsesByID:       responsesByID,
		responseSets:        responseSets,
		codec:               codec,
		TrustedSender:       props.TrustedSender,
		LogRemoteExceptions: props.LogRemoteExceptions,
	}, nil
}

// messageDescriptor looks up a registered message by id.
func (p *Protocol) messageDescriptor(id int) (MessageDescriptor, bool) {
	d, ok := p.messagesByID[id]
	return d, ok
}

// ResponseSet returns the set of response ids (EmptyResponseID always
// included) a registered message may produce, in sorted order. Returns
// nil, false if messageTypeID is not part of the protocol.
func (p *Protocol) ResponseSet(messageTypeID int) ([]int, bool) {
	set, ok := p.responseSets[messageTypeID]
	if !ok {
		return nil, false
	}

	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, true
}

// MessageIDs returns every registered message id, in sorted order. Used
// by MessageReceiver.Validate and by the shim generator.
func (p *Protocol) MessageIDs() []int {
	ids := make([]int, 0, len(p.messagesByID))
	for id := range p.messagesByID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MessageDescriptors returns every registered MessageDescriptor, sorted
// by id.
func (p *Protocol) MessageDescriptors() []MessageDescriptor {
	ids := p.MessageIDs()
	out := make([]MessageDescriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.messagesByID[id])
	}
	return out
}

// UnregisteredMessageIDError is raised (or, for a receiver opting out of
// raising, carried as a runtime-kind error envelope) when a frame names
// a message id the protocol does not know about.
type UnregisteredMessageIDError struct {
	ID int
}

func (e *UnregisteredMessageIDError) Error() string {
	return fmt.Sprintf("message: unregistered message id %d", e.ID)
}

// UnregisteredResponseIDError is returned by a sender when the response
// frame names a response id the protocol does not know about. Per
// spec.md 4.3 this always surfaces as a remote error describing protocol
// drift; it is not configurable the way the message-side case is.
type UnregisteredResponseIDError struct {
	ID int
}

func (e *UnregisteredResponseIDError) Error() string {
	return fmt.Sprintf("message: unregistered response id %d", e.ID)
}

// MessageToDict encodes m into an envelope mapping with its type id
// under "t" and its payload under "m".
func (p *Protocol) MessageToDict(m Message) (map[string]interface{}, error) {
	payload, err := p.codec.ToMapping(m)
	if err != nil {
		return nil, fmt.Errorf("message: failed to encode message payload: %w", err)
	}

	return map[string]interface{}{
		"t": float64(m.MessageTypeID()),
		"m": payload,
	}, nil
}

// MessageFromDict decodes an envelope mapping into its concrete Message.
// Returns *UnregisteredMessageIDError if "t" names an id the protocol
// does not know about.
func (p *Protocol) MessageFromDict(d map[string]interface{}) (Message, error) {
	id, ok := envelopeID(d)
	if !ok {
		return nil, fmt.Errorf("message: envelope has no message id")
	}

	desc, ok := p.messageDescriptor(id)
	if !ok {
		return nil, &UnregisteredMessageIDError{ID: id}
	}

	payload, _ := d["m"].(map[string]interface{})
	msg := desc.New()
	if err := p.codec.FromMapping(msg, payload); err != nil {
		return nil, fmt.Errorf("message: failed to decode message payload: %w", err)
	}

	return msg, nil
}

// ResponseToDict encodes r into an envelope mapping with its type id
// under "t" and its payload under "m".
func (p *Protocol) ResponseToDict(r Response) (map[string]interface{}, error) {
	if _, isEmpty := r.(EmptyResponse); isEmpty {
		return map[string]interface{}{
			"t": float64(EmptyResponseID),
			"m": map[string]interface{}{},
		}, nil
	}

	payload, err := p.codec.ToMapping(r)
	if err != nil {
		return nil, fmt.Errorf("message: failed to encode response payload: %w", err)
	}

	return map[string]interface{}{
		"t": float64(r.ResponseTypeID()),
		"m": payload,
	}, nil
}

// ResponseFromDict decodes an envelope mapping into its concrete
// Response. Returns *UnregisteredResponseIDError if "t" names an id the
// protocol does not know about.
func (p *Protocol) ResponseFromDict(d map[string]interface{}) (Response, error) {
	id, ok := envelopeID(d)
	if !ok {
		return nil, fmt.Errorf("message: envelope has no response id")
	}

	if id == EmptyResponseID {
		return EmptyResponse{}, nil
	}

	desc, ok := p.responsesByID[id]
	if !ok {
		return nil, &UnregisteredResponseIDError{ID: id}
	}

	payload, _ := d["m"].(map[string]interface{})
	resp := desc.New()
	if err := p.codec.FromMapping(resp, payload); err != nil {
		return nil, fmt.Errorf("message: failed to decode response payload: %w", err)
	}

	return resp, nil
}

// ErrorToDict encodes a handler failure into an error envelope. trace is
// included only when p.TrustedSender is true.
func (p *Protocol) ErrorToDict(err error) map[string]interface{} {
	switch e := err.(type) {
	case errors.CleanError:
		return map[string]interface{}{
			"t":       errorSentinel,
			"kind":    "clean",
			"message": e.Message,
		}
	case *errors.CleanError:
		return map[string]interface{}{
			"t":       errorSentinel,
			"kind":    "clean",
			"message": e.Message,
		}
	case errors.RemoteError:
		d := map[string]interface{}{
			"t":       errorSentinel,
			"kind":    "runtime",
			"message": e.Message,
		}
		if p.TrustedSender && e.HasTrace {
			d["trace"] = e.Trace
		}
		return d
	default:
		d := map[string]interface{}{
			"t":       errorSentinel,
			"kind":    "runtime",
			"message": err.Error(),
		}
		if p.TrustedSender {
			d["trace"] = string(debug.Stack())
		}
		return d
	}
}

// ErrorFromDict reconstructs the error carried by an error envelope: a
// clean error is reconstructed verbatim, anything else becomes a
// errors.RemoteError with the remote message (and trace, when present).
func (p *Protocol) ErrorFromDict(d map[string]interface{}) error {
	kind, _ := d["kind"].(string)
	msg, _ := d["message"].(string)

	if kind == "clean" {
		return errors.CleanError{Message: msg}
	}

	trace, hasTrace := d["trace"].(string)
	return errors.RemoteError{Message: msg, Trace: trace, HasTrace: hasTrace}
}

// IsErrorEnvelope reports whether an envelope mapping carries the error
// sentinel rather than a numeric type id.
func IsErrorEnvelope(d map[string]interface{}) bool {
	kind, ok := d["t"].(string)
	return ok && kind == errorSentinel
}

// envelopeID extracts the numeric "t" field from an envelope. JSON
// numbers decode as float64, which is why Protocol stores ids as
// float64 on encode and converts back here.
func envelopeID(d map[string]interface{}) (int, bool) {
	switch v := d["t"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
