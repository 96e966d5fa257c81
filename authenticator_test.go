package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/openalumni/go-alumni-auth"
)

func testOptions() auth.Options {
	return auth.NewOptions("test-signing-key-32bytes-minimum")
}

func TestAuther_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("issues token for valid credentials", func(t *testing.T) {
		provider := &MockIdentityProvider{}
		identity := testIdentity("user-123", auth.RoleRegisteredAlumni)
		provider.On("VerifyIdentity", ctx, "ada@example.com", "s3cret").
			Return(identity, nil).Once()

		auther := auth.NewAuthenticator(provider, &fakeRepoManager{users: newFakeUsers()}, testOptions())

		token, resolved, err := auther.Login(ctx, "ada@example.com", "s3cret")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		assert.Equal(t, "user-123", resolved.ID())

		claims, err := auther.SessionFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.Subject())
		assert.Equal(t, auth.RoleRegisteredAlumni, claims.RoleSnapshot())
		provider.AssertExpectations(t)
	})

	t.Run("propagates invalid credentials", func(t *testing.T) {
		provider := &MockIdentityProvider{}
		provider.On("VerifyIdentity", ctx, "ada@example.com", "wrong").
			Return(nil, auth.ErrInvalidCredentials).Once()

		auther := auth.NewAuthenticator(provider, &fakeRepoManager{users: newFakeUsers()}, testOptions())

		token, identity, err := auther.Login(ctx, "ada@example.com", "wrong")
		require.Error(t, err)
		assert.Equal(t, auth.TextCodeInvalidCredentials, auth.TextCode(err))
		assert.Empty(t, token)
		assert.Nil(t, identity)
	})
}

func TestAuther_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates applied alumni and issues token", func(t *testing.T) {
		users := newFakeUsers()
		auther := auth.NewAuthenticator(&MockIdentityProvider{}, &fakeRepoManager{users: users}, testOptions())

		token, err := auther.Register(ctx, auth.RegisterUserMessage{
			Name:     "Ada Lovelace",
			Email:    "Ada@Example.com",
			Password: "s3cret-pass",
		})
		require.NoError(t, err)
		require.NotEmpty(t, token)

		require.Len(t, users.registered, 1)
		created := users.registered[0]
		assert.Equal(t, "ada@example.com", created.Email)
		assert.Equal(t, auth.RoleAppliedAlumni, created.Role)
		assert.NotEmpty(t, created.PasswordHash)
		assert.NotEqual(t, "s3cret-pass", created.PasswordHash)

		claims, err := auther.SessionFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, created.ID.String(), claims.Subject())
		assert.Equal(t, auth.RoleAppliedAlumni, claims.RoleSnapshot())
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		users := newFakeUsers()
		users.add(&auth.User{Email: "ada@example.com", Role: auth.RoleAppliedAlumni})

		auther := auth.NewAuthenticator(&MockIdentityProvider{}, &fakeRepoManager{users: users}, testOptions())

		_, err := auther.Register(ctx, auth.RegisterUserMessage{
			Name:     "Ada",
			Email:    "ada@example.com",
			Password: "s3cret-pass",
		})
		require.Error(t, err)
		assert.Equal(t, auth.TextCodeAlreadyRegistered, auth.TextCode(err))
		assert.Empty(t, users.registered)
	})

	t.Run("rejects invalid payload", func(t *testing.T) {
		auther := auth.NewAuthenticator(&MockIdentityProvider{}, &fakeRepoManager{users: newFakeUsers()}, testOptions())

		_, err := auther.Register(ctx, auth.RegisterUserMessage{
			Name:     "Ada",
			Email:    "not-an-email",
			Password: "short",
		})
		require.Error(t, err)
	})
}
