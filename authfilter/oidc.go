package authfilter

import (
	"context"

	oidc "github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"github.com/oasislabs/protorpc/message"
)

// IDToken is the subset of oidc.IDToken this package needs, grounded on
// the teacher's auth/oauth.IDToken.
type IDToken interface {
	Claims(v interface{}) error
}

// IDTokenVerifier is the subset of *oidc.IDTokenVerifier this package
// needs, grounded on the teacher's auth/oauth.IDTokenVerifier.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (IDToken, error)
}

type oidcIDTokenVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v *oidcIDTokenVerifier) Verify(ctx context.Context, rawIDToken string) (IDToken, error) {
	return v.verifier.Verify(ctx, rawIDToken)
}

// NewRemoteIDTokenVerifier builds an IDTokenVerifier against issuer's
// published key set, skipping audience/client-id checking since a
// message-passing sender has no OAuth2 client id of its own.
func NewRemoteIDTokenVerifier(ctx context.Context, issuer, keySetURL string) IDTokenVerifier {
	keySet := oidc.NewRemoteKeySet(ctx, keySetURL)
	return &oidcIDTokenVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{SkipClientIDCheck: true}),
	}
}

type openIDClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Scope         string `json:"scope"`
}

// NewOIDCDecodeFilter returns a DecodeFilter that verifies the
// envelope's sidecar "auth" field as an OpenID Connect ID token and
// delivers the result as Claims (Subject is the token's verified
// email) to any decoded record implementing ClaimsReceiver.
func NewOIDCDecodeFilter(verifier IDTokenVerifier) message.DecodeFilter {
	return func(envelope map[string]interface{}, record interface{}) {
		deliver(record, verifyOIDC(context.Background(), envelope, verifier))
	}
}

func verifyOIDC(ctx context.Context, envelope map[string]interface{}, verifier IDTokenVerifier) Claims {
	raw, ok := envelope[envelopeKey].(string)
	if !ok || len(raw) == 0 {
		return Claims{}
	}

	idToken, err := verifier.Verify(ctx, raw)
	if err != nil {
		return Claims{}
	}

	var claims openIDClaims
	if err := idToken.Claims(&claims); err != nil || !claims.EmailVerified {
		return Claims{}
	}

	return Claims{Subject: claims.Email, Scope: claims.Scope, Valid: true}
}

// NewOAuth2EncodeFilter returns an EncodeFilter that pulls a token from
// source and attaches its "id_token" extra field (not the access token)
// to the envelope's sidecar "auth" field, for senders authenticating
// against an OIDC-fronted receiver. Nothing is attached when the token
// carries no id_token.
func NewOAuth2EncodeFilter(source oauth2.TokenSource) message.EncodeFilter {
	return func(record interface{}, envelope map[string]interface{}) {
		token, err := source.Token()
		if err != nil {
			return
		}

		idToken, ok := token.Extra("id_token").(string)
		if !ok || len(idToken) == 0 {
			return
		}

		envelope[envelopeKey] = idToken
	}
}
