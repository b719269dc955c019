package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarifyai/config"
)

func TestMasterKeyProvider(t *testing.T) {
	p := NewMasterKeyProvider("secret-key")

	id, err := p.Authenticate(context.Background(), "secret-key")
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())

	_, err = p.Authenticate(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewMasterKeyProvider("").Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTProvider(t *testing.T) {
	p, err := NewJWTProvider("jwt-secret")
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := p.Issue(Identity{Subject: "u-1", Email: "asha@college.edu", Role: RoleUser}, time.Hour)
		require.NoError(t, err)

		id, err := p.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "u-1", id.Subject)
		assert.Equal(t, "asha@college.edu", id.Email)
		assert.False(t, id.IsAdmin())
	})

	t.Run("AdminRole", func(t *testing.T) {
		token, err := p.Issue(Identity{Subject: "u-2", Role: RoleAdmin}, time.Hour)
		require.NoError(t, err)
		id, err := p.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.True(t, id.IsAdmin())
	})

	t.Run("UnknownRoleBecomesUser", func(t *testing.T) {
		token, err := p.Issue(Identity{Subject: "u-3", Role: "superuser"}, time.Hour)
		require.NoError(t, err)
		id, err := p.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, RoleUser, id.Role)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := p.Issue(Identity{Subject: "u-1"}, -time.Minute)
		require.NoError(t, err)
		_, err = p.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, err := NewJWTProvider("another-secret")
		require.NoError(t, err)
		token, err := other.Issue(Identity{Subject: "u-1"}, time.Hour)
		require.NoError(t, err)
		_, err = p.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongAlgorithm", func(t *testing.T) {
		claims := &Claims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("jwt-secret"))
		require.NoError(t, err)
		_, err = p.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("MissingSubject", func(t *testing.T) {
		token, err := p.Issue(Identity{}, time.Hour)
		require.NoError(t, err)
		_, err = p.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := p.Authenticate(ctx, "not.a.jwt")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	_, err = NewJWTProvider("")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantNil bool
		wantErr bool
	}{
		{name: "none", wantNil: true},
		{name: "master key only", cfg: config.Config{Server: config.ServerConfig{MasterKey: "k"}}},
		{name: "masterkey provider", cfg: config.Config{
			Server: config.ServerConfig{MasterKey: "k"},
			Auth:   config.AuthConfig{Provider: ProviderMasterKey},
		}},
		{name: "jwt", cfg: config.Config{Auth: config.AuthConfig{Provider: ProviderJWT, JWTSecret: "s"}}},
		{name: "jwt without secret", cfg: config.Config{Auth: config.AuthConfig{Provider: ProviderJWT}}, wantErr: true},
		{name: "unknown", cfg: config.Config{Auth: config.AuthConfig{Provider: "ldap"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, p)
			} else {
				assert.NotNil(t, p)
			}
		})
	}
}

func TestChain_MasterKeyAndJWT(t *testing.T) {
	p, err := New(config.Config{
		Server: config.ServerConfig{MasterKey: "master"},
		Auth:   config.AuthConfig{Provider: ProviderJWT, JWTSecret: "s"},
	})
	require.NoError(t, err)

	id, err := p.Authenticate(context.Background(), "master")
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())

	jp, err := NewJWTProvider("s")
	require.NoError(t, err)
	token, err := jp.Issue(Identity{Subject: "u-9"}, time.Hour)
	require.NoError(t, err)
	id, err = p.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-9", id.Subject)

	_, err = p.Authenticate(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignInMethod(t *testing.T) {
	assert.Equal(t, "google", (&Identity{Email: "someone@google.com"}).SignInMethod())
	assert.Equal(t, "google", (&Identity{Email: "x@GoogleMail.com"}).SignInMethod())
	assert.Equal(t, "email", (&Identity{Email: "asha@college.edu"}).SignInMethod())
	assert.Equal(t, "email", Anonymous().SignInMethod())
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	id := &Identity{Subject: "u"}
	assert.Same(t, id, FromContext(WithIdentity(ctx, id)))
}
