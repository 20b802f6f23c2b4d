package message

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/oasislabs/protorpc/rw"
)

// defaultMaxFrameBytes bounds how large an inbound frame DecodeDict will
// accept before rw.ErrLimitExceeded, matching the teacher's HTTP handler
// default body limit of 64KiB.
const defaultMaxFrameBytes = 1 << 16

// EncodeDict serializes an envelope mapping to its wire frame. The
// encoding is UTF-8 text and deterministic: encoding/json already emits
// object keys in sorted order, so two calls with equal maps always
// produce byte-identical output.
func (p *Protocol) EncodeDict(d map[string]interface{}) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// DecodeDict parses a wire frame back into an envelope mapping. Callers
// branch on IsErrorEnvelope(d) to tell an error envelope from a message
// or response envelope. Frames larger than defaultMaxFrameBytes are
// rejected with rw.ErrLimitExceeded before they ever reach
// encoding/json, so a misbehaving sender can't force an unbounded
// allocation.
func (p *Protocol) DecodeDict(s string) (map[string]interface{}, error) {
	return p.DecodeDictLimit(s, defaultMaxFrameBytes)
}

// DecodeDictLimit is DecodeDict with a caller-chosen frame size limit.
func (p *Protocol) DecodeDictLimit(s string, maxBytes int64) (map[string]interface{}, error) {
	var buf bytes.Buffer
	if _, err := rw.CopyWithLimit(&buf, strings.NewReader(s), rw.ReadLimitProps{
		Limit:        maxBytes,
		FailOnExceed: true,
	}); err != nil {
		return nil, err
	}

	var d map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &d); err != nil {
		return nil, err
	}

	return d, nil
}
