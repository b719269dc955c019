// Package auth resolves bearer tokens into caller identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clarifyai/config"
)

// Roles carried by an Identity.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Provider names accepted in configuration.
const (
	ProviderMasterKey = "masterkey"
	ProviderJWT       = "jwt"
)

// AnonymousSubject identifies requests served without an identity provider.
const AnonymousSubject = "anonymous"

// ErrInvalidToken is returned when a token is not accepted by any provider.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller.
type Identity struct {
	Subject string `json:"id"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role"`
}

// IsAdmin reports whether the identity may manage FAQs and other users' content.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// SignInMethod names how the account signs in: "google" for Google
// addresses, "email" otherwise.
func (i *Identity) SignInMethod() string {
	if i != nil && strings.Contains(strings.ToLower(i.Email), "google") {
		return "google"
	}
	return "email"
}

// Anonymous returns the identity used when no provider is configured.
func Anonymous() *Identity {
	return &Identity{Subject: AnonymousSubject, Role: RoleUser}
}

// IdentityProvider authenticates a raw bearer token.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// chain tries each provider in order and returns the first success.
type chain []IdentityProvider

func (c chain) Authenticate(ctx context.Context, token string) (*Identity, error) {
	err := ErrInvalidToken
	for _, p := range c {
		id, perr := p.Authenticate(ctx, token)
		if perr == nil {
			return id, nil
		}
		err = perr
	}
	return nil, err
}

// New builds the identity provider from configuration.
// A configured master key is always accepted as an admin token, in front of
// the selected provider. It returns nil when neither is configured.
func New(cfg config.Config) (IdentityProvider, error) {
	var providers chain
	if cfg.Server.MasterKey != "" {
		providers = append(providers, NewMasterKeyProvider(cfg.Server.MasterKey))
	}

	switch cfg.Auth.Provider {
	case "", ProviderMasterKey:
	case ProviderJWT:
		p, err := NewJWTProvider(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	default:
		return nil, fmt.Errorf("unknown auth provider: %s (valid: masterkey, jwt)", cfg.Auth.Provider)
	}

	switch len(providers) {
	case 0:
		return nil, nil
	case 1:
		return providers[0], nil
	default:
		return providers, nil
	}
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}
