package message

// EncodeFilter mutates an outbound envelope after a message or response
// has been encoded into it, and may also read/write fields on the
// record being sent. Filters carry data outside the typed payload —
// auth tokens, correlation ids — without extending the payload's
// schema. See the authfilter package for a worked example.
//
// Filters must not fail the send/receive operation: per spec.md section
// 9's open questions, the runtime assumes filters never panic/error to
// abort in-flight dispatch; a filter bug propagates as an ordinary Go
// panic, same as any other programming error would.
type EncodeFilter func(record interface{}, envelope map[string]interface{})

// DecodeFilter mutates/reads an inbound envelope after it has been
// decoded into a concrete message or response.
type DecodeFilter func(envelope map[string]interface{}, record interface{})
