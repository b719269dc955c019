package auth

import (
	"context"
	"crypto/subtle"
)

// MasterKeyProvider accepts a single shared key and maps it to the admin identity.
type MasterKeyProvider struct {
	key []byte
}

// NewMasterKeyProvider creates a provider for key.
func NewMasterKeyProvider(key string) *MasterKeyProvider {
	return &MasterKeyProvider{key: []byte(key)}
}

func (p *MasterKeyProvider) Authenticate(_ context.Context, token string) (*Identity, error) {
	if len(p.key) == 0 || subtle.ConstantTimeCompare([]byte(token), p.key) != 1 {
		return nil, ErrInvalidToken
	}
	return &Identity{Subject: RoleAdmin, Role: RoleAdmin}, nil
}
