package message

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oasislabs/protorpc/errors"
)

type m1 struct {
	Ival int `json:"ival"`
}

func (m1) MessageTypeID() int { return 1 }

type r1 struct {
	Bval bool `json:"bval"`
}

func (r1) ResponseTypeID() int { return 1 }

func testProtocol(t *testing.T, props ProtocolProperties) *Protocol {
	p, err := NewProtocol(props)
	assert.NoError(t, err)
	return p
}

func TestNewProtocolWellFormed(t *testing.T) {
	p := testProtocol(t, ProtocolProperties{
		Messages: []MessageDescriptor{
			{ID: 1, New: func() Message { return &m1{} }, ResponseIDs: []int{1}},
		},
		Responses: []ResponseDescriptor{
			{ID: 1, New: func() Response { return &r1{} }},
		},
	})

	assert.Equal(t, []int{1}, p.MessageIDs())

	ids, ok := p.ResponseSet(1)
	assert.True(t, ok)
	assert.Equal(t, []int{EmptyResponseID, 1}, ids)
}

func TestNewProtocolRejectsNegativeMessageID(t *testing.T) {
	_, err := NewProtocol(ProtocolProperties{
		Messages: []MessageDescriptor{
			{ID: -1, New: func() Message { return &m1{} }},
		},
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrProtocolIDNegative, err.(errors.Error).ErrorCode())
}

func TestNewProtocolRejectsDuplicateMessageID(t *testing.T) {
	_, err := NewProtocol(ProtocolProperties{
		Messages: []MessageDescriptor{
			{ID: 1, New: func() Message { return &m1{} }},
			{ID: 1, New: func() Message { return &m1{} }},
		},
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrProtocolIDDuplicate, err.(errors.Error).ErrorCode())
}

func TestNewProtocolRejectsDuplicateResponseID(t *testing.T) {
	_, err := NewProtocol(ProtocolProperties{
		Responses: []ResponseDescriptor{
			{ID: 1, New: func() Response { return &r1{} }},
			{ID: 1, New: func() Response { return &r1{} }},
		},
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrProtocolIDDuplicate, err.(errors.Error).ErrorCode())
}

func TestNewProtocolRejectsReservedEmptyResponseID(t *testing.T) {
	_, err := NewProtocol(ProtocolProperties{
		Responses: []ResponseDescriptor{
			{ID: EmptyResponseID, New: func() Response { return &r1{} }},
		},
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrProtocolIDDuplicate, err.(errors.Error).ErrorCode())
}

func TestNewProtocolRejectsUnrepresentableResponse(t *testing.T) {
	_, err := NewProtocol(ProtocolProperties{
		Messages: []MessageDescriptor{
			{ID: 1, New: func() Message { return &m1{} }, ResponseIDs: []int{99}},
		},
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrProtocolUnrepresentableResponse, err.(errors.Error).ErrorCode())
}

func TestMessageToDictFromDictRoundTrip(t *testing.T) {
	p := testProtocol(t, ProtocolProperties{
		Messages: []MessageDescriptor{
			{ID: 1, New: func() Message { return &m1{} }, ResponseIDs: []int{1}},
		},
		Responses: []ResponseDescriptor{
			{ID: 1, New: func() Response { return &r1{} }},
		},
	})

	envelope, err := p.MessageToDict(&m1{Ival: 42})
	assert.NoError(t, err)

	frame, err := p.EncodeDict(envelope)
	assert.NoError(t, err)

	decoded, err := p.DecodeDict(frame)
	assert.NoError(t, err)

	msg, err := p.MessageFromDict(decoded)
	assert.NoError(t, err)
	assert.Equal(t, &m1{Ival: 42}, msg)
}

func TestMessageFromDictUnregistered(t *testing.T) {
	p := testProtocol(t, ProtocolProperties{})

	_, err := p.MessageFromDict(map[string]interface{}{"t": float64(7), "m": map[string]interface{}{}})
	assert.Error(t, err)

	unreg, ok := err.(*UnregisteredMessageIDError)
	assert.True(t, ok)
	assert.Equal(t, 7, unreg.ID)
}

func TestResponseFromDictEmpty(t *testing.T) {
	p := testProtocol(t, ProtocolProperties{})

	resp, err := p.ResponseFromDict(map[string]interface{}{"t": float64(EmptyResponseID), "m": map[string]interface{}{}})
	assert.NoError(t, err)
	assert.Equal(t, EmptyResponse{}, resp)
}

func TestResponseFromDictUnregistered(t *testing.T) {
	p := testProtocol(t, ProtocolProperties{})

	_, err := p.ResponseFromDict(map[string]interface{}{"t": float64(99), "m": map[string]interface{}{}})
	assert.Error(t, err)

	unreg, ok := err.(*UnregisteredResponseIDError)
	assert.True(t, ok)
	assert.Equal(t, 99, unreg.ID)
}

func TestErrorToDictFromDictCleanError(t *testing.T) {
	p := testProtocol(t, ProtocolProperties{})

	envelope := p.ErrorToDict(errors.CleanError{Message: "Testing Clean Error"})
	assert.True(t, IsErrorEnvelope(envelope))

	err := p.ErrorFromDict(envelope)
	assert.Equal(t, errors.CleanError{Message: "Testing Clean Error"}, err)
}

func TestErrorToDictFromDictRuntimeErrorTrustedSender(t *testing.T) {
	p := testProtocol(t, ProtocolProperties{TrustedSender: true})

	envelope := p.ErrorToDict(assertErr("boom"))
	assert.True(t, IsErrorEnvelope(envelope))
	_, hasTrace := envelope["trace"]
	assert.True(t, hasTrace)

	err := p.ErrorFromDict(envelope)
	remote, ok := err.(errors.RemoteError)
	assert.True(t, ok)
	assert.Equal(t, "boom", remote.Message)
	assert.True(t, remote.HasTrace)
}

func TestErrorToDictFromDictRuntimeErrorUntrustedSender(t *testing.T) {
	p := testProtocol(t, ProtocolProperties{TrustedSender: false})

	envelope := p.ErrorToDict(assertErr("boom"))
	_, hasTrace := envelope["trace"]
	assert.False(t, hasTrace)

	err := p.ErrorFromDict(envelope)
	remote, ok := err.(errors.RemoteError)
	assert.True(t, ok)
	assert.Equal(t, "boom", remote.Message)
	assert.False(t, remote.HasTrace)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
