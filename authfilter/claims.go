// Package authfilter is a worked example of message.EncodeFilter /
// message.DecodeFilter: it carries an authentication token as sidecar
// data alongside a message's payload, verifying it on the receive side
// without the payload's schema ever needing an auth field of its own.
//
// Per the filter contract (see message.DecodeFilter), a filter never
// aborts dispatch: a bad or missing token does not stop
// BoundMessageReceiver.HandleRawMessage from running the handler. It
// instead leaves Claims.Valid false, and it is the handler's job to
// check that when it cares — the same way the teacher's JwtVerifier
// reports pass/fail through a return value rather than a panic.
package authfilter

// Claims is the sidecar data a verified token carries. Valid is false
// whenever the token was missing, malformed, or failed verification;
// Subject/Scope are only meaningful when Valid is true.
type Claims struct {
	Subject string
	Scope   string
	Valid   bool
}

// ClaimsReceiver is implemented by a Message/Response that wants the
// verified Claims attached to it. A DecodeFilter in this package is a
// no-op against a record that doesn't implement it, beyond having
// performed the verification.
type ClaimsReceiver interface {
	SetAuthClaims(Claims)
}

// envelopeKey is the sidecar field name the filters in this package
// read and write.
const envelopeKey = "auth"

func deliver(record interface{}, claims Claims) {
	if r, ok := record.(ClaimsReceiver); ok {
		r.SetAuthClaims(claims)
	}
}
