package authfilter

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

type fakeIDToken struct {
	email    string
	verified bool
	scope    string
}

func (t fakeIDToken) Claims(v interface{}) error {
	claims, ok := v.(*openIDClaims)
	if !ok {
		return fmt.Errorf("unexpected claims target %T", v)
	}
	claims.Email = t.email
	claims.EmailVerified = t.verified
	claims.Scope = t.scope
	return nil
}

type fakeVerifier struct {
	token IDToken
	err   error
}

func (v fakeVerifier) Verify(ctx context.Context, rawIDToken string) (IDToken, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.token, nil
}

func TestOIDCDecodeFilterDeliversVerifiedClaims(t *testing.T) {
	decode := NewOIDCDecodeFilter(fakeVerifier{
		token: fakeIDToken{email: "alice@example.com", verified: true, scope: "read"},
	})

	envelope := map[string]interface{}{envelopeKey: "raw-token"}
	record := &claimsRecord{}
	decode(envelope, record)

	assert.True(t, record.Claims.Valid)
	assert.Equal(t, "alice@example.com", record.Claims.Subject)
	assert.Equal(t, "read", record.Claims.Scope)
}

func TestOIDCDecodeFilterRejectsUnverifiedEmail(t *testing.T) {
	decode := NewOIDCDecodeFilter(fakeVerifier{
		token: fakeIDToken{email: "alice@example.com", verified: false},
	})

	envelope := map[string]interface{}{envelopeKey: "raw-token"}
	record := &claimsRecord{}
	decode(envelope, record)

	assert.False(t, record.Claims.Valid)
}

func TestOIDCDecodeFilterRejectsVerifyError(t *testing.T) {
	decode := NewOIDCDecodeFilter(fakeVerifier{err: fmt.Errorf("bad signature")})

	envelope := map[string]interface{}{envelopeKey: "raw-token"}
	record := &claimsRecord{}
	assert.NotPanics(t, func() { decode(envelope, record) })
	assert.False(t, record.Claims.Valid)
}

func TestOIDCDecodeFilterMissingTokenIsInert(t *testing.T) {
	decode := NewOIDCDecodeFilter(fakeVerifier{})

	record := &claimsRecord{}
	assert.NotPanics(t, func() { decode(map[string]interface{}{}, record) })
	assert.False(t, record.Claims.Valid)
}

func TestOAuth2EncodeFilterAttachesIDToken(t *testing.T) {
	source := oauth2.StaticTokenSource(
		(&oauth2.Token{AccessToken: "access"}).WithExtra(map[string]interface{}{
			"id_token": "signed-id-token",
		}),
	)
	encode := NewOAuth2EncodeFilter(source)

	envelope := map[string]interface{}{}
	encode(nil, envelope)

	assert.Equal(t, "signed-id-token", envelope[envelopeKey])
}

func TestOAuth2EncodeFilterMissingIDTokenIsInert(t *testing.T) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access"})
	encode := NewOAuth2EncodeFilter(source)

	envelope := map[string]interface{}{}
	assert.NotPanics(t, func() { encode(nil, envelope) })
	assert.NotContains(t, envelope, envelopeKey)
}
