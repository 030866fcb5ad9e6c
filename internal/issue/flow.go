// Copyright 2026 The Busgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package issue implements the two token issuance flows: the
// authorization-code exchange and the client-credentials grant.
package issue

import (
	"context"
	"time"

	"github.com/busgate/busgate/internal/access"
	"github.com/busgate/busgate/internal/audit"
	"github.com/busgate/busgate/internal/grant"
	"github.com/busgate/busgate/internal/identity"
	"github.com/busgate/busgate/internal/scope"
)

// Grant type values accepted by the token endpoint.
const (
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeCode              = "code"
)

// Service implements the token issuance flows.
type Service struct {
	clients     identity.ClientStore
	accessEng   *access.Engine
	grants      *grant.Engine
	hasher      *identity.SecretHasher
	auditLogger audit.Logger

	tokenLifetime time.Duration
	codeLifetime  time.Duration
}

// NewService creates a new issuance service.
func NewService(
	clients identity.ClientStore,
	accessEng *access.Engine,
	grants *grant.Engine,
	hasher *identity.SecretHasher,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		clients:       clients,
		accessEng:     accessEng,
		grants:        grants,
		hasher:        hasher,
		auditLogger:   auditLogger,
		tokenLifetime: 3600 * time.Second,
		codeLifetime:  5 * time.Minute,
	}
}

// WithLifetimes overrides the default token and code lifetimes.
// Zero values leave the corresponding default in place.
func (s *Service) WithLifetimes(token, code time.Duration) *Service {
	if token > 0 {
		s.tokenLifetime = token
	}
	if code > 0 {
		s.codeLifetime = code
	}
	return s
}

// TokenRequest represents a parsed token endpoint request. SecretProvided
// distinguishes an absent client_secret parameter from a present-but-empty
// one; anonymous clients must send the parameter with an empty value.
type TokenRequest struct {
	GrantType      string
	ClientID       string
	ClientSecret   string
	SecretProvided bool
	Code           string
	RedirectURI    string
	Scope          string
}

// TokenResponse represents a successful token endpoint response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	Channel     string `json:"backplane_channel,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// Token dispatches a token request to the matching grant flow. Required
// fields are checked before any store access.
func (s *Service) Token(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.ClientID == "" {
		return nil, NewError(ErrInvalidRequest, "missing client_id")
	}
	if req.GrantType == "" {
		return nil, NewError(ErrInvalidRequest, "missing grant_type")
	}

	switch req.GrantType {
	case GrantTypeClientCredentials:
		return s.clientCredentials(ctx, req)
	case GrantTypeCode:
		return s.exchangeCode(ctx, req)
	default:
		return nil, NewError(ErrUnsupportedGrantType, "unsupported grant_type "+req.GrantType)
	}
}

// clientCredentials issues a channel-bound REGULAR_TOKEN directly,
// without a code. The anonymous client authenticates with an empty
// secret; any other client must match its provisioned secret hash.
func (s *Service) clientCredentials(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if !req.SecretProvided {
		return nil, NewError(ErrInvalidRequest, "missing client_secret")
	}

	if req.ClientID == identity.AnonymousClientID {
		if req.ClientSecret != "" {
			return nil, NewError(ErrInvalidClient, "secret not allowed for anonymous requests")
		}
	} else {
		if err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret); err != nil {
			return nil, err
		}
	}

	if err := validateRequestedScope(req.Scope, nil); err != nil {
		return nil, err
	}

	expires := time.Now().Add(s.tokenLifetime)
	tok, err := access.NewToken(access.NewID(), nil, req.Scope, &expires, true)
	if err != nil {
		return nil, NewError(ErrServerError, "failed to build token")
	}
	if err := s.accessEng.Create(ctx, tok); err != nil {
		return nil, NewError(ErrServerError, "failed to persist token")
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		ActorID:  req.ClientID,
		Resource: "token",
		Metadata: map[string]any{
			"grant_type": GrantTypeClientCredentials,
			"channel":    tok.Channel,
		},
	})

	return s.respond(tok), nil
}

// exchangeCode exchanges a single-use code for a channel-bound
// REGULAR_TOKEN carrying the code's authorized buses. An absent, expired,
// or already-consumed code all surface as invalid_grant.
func (s *Service) exchangeCode(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, NewError(ErrInvalidRequest, "missing code")
	}
	if req.RedirectURI == "" {
		return nil, NewError(ErrInvalidRequest, "missing redirect_uri")
	}

	client, err := s.clients.Get(ctx, req.ClientID)
	if err != nil {
		return nil, NewError(ErrInvalidClient, "invalid client credentials")
	}
	ok, err := s.hasher.Verify(req.ClientSecret, client.SecretHash)
	if err != nil || !ok {
		return nil, NewError(ErrInvalidClient, "invalid client credentials")
	}

	if req.RedirectURI != client.RedirectURI {
		return nil, NewError(ErrInvalidGrant, "redirect_uri mismatch")
	}

	peek, err := s.accessEng.Get(ctx, req.Code, time.Now())
	if err != nil {
		if err == access.ErrNotFound {
			return nil, NewError(ErrInvalidGrant, "invalid code")
		}
		return nil, NewError(ErrServerError, "failed to read code")
	}
	if peek.Kind != access.KindCode {
		return nil, NewError(ErrInvalidGrant, "invalid code")
	}

	// A rejected scope must not burn the single-use code.
	if err := validateRequestedScope(req.Scope, peek.Buses); err != nil {
		return nil, err
	}

	code, err := s.accessEng.ConsumeCode(ctx, req.Code, time.Now())
	if err != nil {
		if err == access.ErrNotFound {
			return nil, NewError(ErrInvalidGrant, "invalid code")
		}
		return nil, NewError(ErrServerError, "failed to read code")
	}

	scopeString := req.Scope
	if scopeString == "" {
		scopeString = code.EncodedBuses()
	}

	expires := time.Now().Add(s.tokenLifetime)
	tok, err := access.NewToken(access.NewID(), code.Buses, scopeString, &expires, true)
	if err != nil {
		return nil, NewError(ErrServerError, "failed to build token")
	}
	if err := s.accessEng.Create(ctx, tok); err != nil {
		return nil, NewError(ErrServerError, "failed to persist token")
	}

	if code.GrantID != "" {
		if _, err := s.grants.LinkToken(ctx, code.GrantID, tok.ID); err != nil {
			return nil, NewError(ErrServerError, "failed to record token provenance")
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCodeExchanged,
		ActorID:  req.ClientID,
		Resource: "token",
		Metadata: map[string]any{
			"grant_type": GrantTypeCode,
			"buses":      code.EncodedBuses(),
			"channel":    tok.Channel,
		},
	})

	// The exchange response carries no expiry or channel field; the
	// channel stays discoverable through the token's scope.
	return &TokenResponse{
		AccessToken: tok.ID,
		TokenType:   "Bearer",
		Scope:       tok.Scope,
	}, nil
}

// IssueCode mints a single-use code scoped to the given buses under the
// named grant.
func (s *Service) IssueCode(ctx context.Context, buses []string, grantID string) (*access.Access, error) {
	expires := time.Now().Add(s.codeLifetime)
	code, err := access.NewCode(access.NewID(), buses, grantID, &expires)
	if err != nil {
		return nil, err
	}
	if err := s.accessEng.Create(ctx, code); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCodeIssued,
		Resource: "code",
		Metadata: map[string]any{
			"grant_id": grantID,
			"buses":    code.EncodedBuses(),
		},
	})
	return code, nil
}

func (s *Service) authenticateClient(ctx context.Context, clientID, secret string) error {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return NewError(ErrInvalidClient, "invalid client credentials")
	}
	ok, err := s.hasher.Verify(secret, client.SecretHash)
	if err != nil || !ok {
		return NewError(ErrInvalidClient, "invalid client credentials")
	}
	return nil
}

// respond shapes the client-credentials response, which is the only one
// carrying expires_in and backplane_channel.
func (s *Service) respond(tok *access.Access) *TokenResponse {
	return &TokenResponse{
		AccessToken: tok.ID,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenLifetime / time.Second),
		Channel:     tok.Channel,
		Scope:       tok.Scope,
	}
}

// validateRequestedScope rejects malformed scope strings and reserved
// entries a caller may not request. Payload entries are reserved for
// privileged tokens; bus entries are only allowed on the code path and
// must stay within the code's authorized set; channel entries are always
// generated, never requested.
func validateRequestedScope(scopeString string, allowedBuses []string) error {
	if scopeString == "" {
		return nil
	}
	pairs, err := scope.Parse(scopeString)
	if err != nil {
		return NewError(ErrInvalidScope, "malformed scope")
	}
	for _, p := range pairs {
		switch p.Key {
		case scope.KeyPayload:
			return NewError(ErrInvalidScope, "payload scope requires a privileged token")
		case scope.KeyChannel:
			return NewError(ErrInvalidScope, "channel scope cannot be requested")
		case scope.KeyBus:
			if !busAllowed(p.Value, allowedBuses) {
				return NewError(ErrInvalidScope, "bus not authorized: "+p.Value)
			}
		}
	}
	return nil
}

func busAllowed(bus string, allowed []string) bool {
	for _, b := range allowed {
		if b == bus {
			return true
		}
	}
	return false
}
