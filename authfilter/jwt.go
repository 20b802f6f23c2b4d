package authfilter

import (
	"time"

	jwt "github.com/dgrijalva/jwt-go"

	"github.com/oasislabs/protorpc/message"
)

// jwtClaims is the HS256 claim set this filter signs and verifies,
// grounded on the teacher's auth/core.Claims (scope + subject embedded
// in a jwt.StandardClaims).
type jwtClaims struct {
	jwt.StandardClaims
	Scope string `json:"scope"`
}

// NewJWTEncodeFilter returns an EncodeFilter that signs a short-lived
// HS256 token naming subject/scope and attaches it to the envelope's
// sidecar "auth" field. It is meant to be installed on a
// message.MessageSender.
func NewJWTEncodeFilter(secret []byte, subject, scope string, ttl time.Duration) message.EncodeFilter {
	return func(record interface{}, envelope map[string]interface{}) {
		now := time.Now()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwtClaims{
			StandardClaims: jwt.StandardClaims{
				Subject:   subject,
				IssuedAt:  now.Unix(),
				ExpiresAt: now.Add(ttl).Unix(),
			},
			Scope: scope,
		})

		signed, err := token.SignedString(secret)
		if err != nil {
			// A filter never aborts the send; an unsigned token simply
			// fails verification on the receive side.
			return
		}

		envelope[envelopeKey] = signed
	}
}

// NewJWTDecodeFilter returns a DecodeFilter that verifies the envelope's
// sidecar "auth" token against secret and delivers the result as Claims
// to any decoded record implementing ClaimsReceiver. It is meant to be
// installed on a message.MessageReceiver.
func NewJWTDecodeFilter(secret []byte) message.DecodeFilter {
	return func(envelope map[string]interface{}, record interface{}) {
		deliver(record, verifyJWT(envelope, secret))
	}
}

func verifyJWT(envelope map[string]interface{}, secret []byte) Claims {
	raw, ok := envelope[envelopeKey].(string)
	if !ok || len(raw) == 0 {
		return Claims{}
	}

	var claims jwtClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return Claims{}
	}

	return Claims{Subject: claims.Subject, Scope: claims.Scope, Valid: true}
}
