package rolegate_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/openalumni/go-alumni-auth"
	"github.com/openalumni/go-alumni-auth/middleware/rolegate"
)

var testSigningKey = []byte("test-signing-key-32bytes-minimum")

func tokenFor(t *testing.T, service auth.TokenService, id, role string) string {
	t.Helper()

	identity := &mockIdentity{id: id, role: role}
	token, err := service.Generate(identity)
	require.NoError(t, err)
	return token
}

type mockIdentity struct {
	id    string
	name  string
	email string
	role  string
}

func (m *mockIdentity) ID() string       { return m.id }
func (m *mockIdentity) Username() string { return m.name }
func (m *mockIdentity) Email() string    { return m.email }
func (m *mockIdentity) Role() string     { return m.role }

// jsonRecorder captures the error response the gate writes.
type jsonRecorder struct {
	status int
	body   any
}

func expectJSON(ctx *router.MockContext) *jsonRecorder {
	rec := &jsonRecorder{}
	ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		rec.status, _ = args.Get(0).(int)
		rec.body = args.Get(1)
	}).Return(nil).Maybe()
	return rec
}

func passThrough(called *bool) router.HandlerFunc {
	return func(ctx router.Context) error {
		*called = true
		return nil
	}
}

func TestRequireToken(t *testing.T) {
	service := auth.NewTokenService(testSigningKey, 100, "", nil, nil)

	cfg := rolegate.Config{TokenValidator: service}

	t.Run("valid token reaches the handler", func(t *testing.T) {
		token := tokenFor(t, service, "user-123", auth.RoleAppliedAlumni)

		ctx := router.NewMockContext()
		ctx.On("GetString", "X-Auth-Token", "").Return(token)
		ctx.On("Locals", "user", mock.Anything).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything).Return()

		called := false
		handler := rolegate.RequireToken(cfg)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.True(t, called)
	})

	t.Run("missing token is 401 with the legacy message", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "X-Auth-Token", "").Return("")
		ctx.On("GetString", "Authorization", "").Return("")
		rec := expectJSON(ctx)

		called := false
		handler := rolegate.RequireToken(cfg)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.status)
		assert.Equal(t, map[string]string{"msg": "No token, authorization denied"}, rec.body)
	})

	t.Run("expired token is 401, not a pass", func(t *testing.T) {
		expiredToken := signExpired(t)

		ctx := router.NewMockContext()
		ctx.On("GetString", "X-Auth-Token", "").Return(expiredToken)
		rec := expectJSON(ctx)

		called := false
		handler := rolegate.RequireToken(cfg)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.status)
	})

	t.Run("tampered token is 401", func(t *testing.T) {
		other := auth.NewTokenService([]byte("another-signing-key-32bytes-long"), 100, "", nil, nil)
		token := tokenFor(t, other, "user-123", auth.RoleAdmin)

		ctx := router.NewMockContext()
		ctx.On("GetString", "X-Auth-Token", "").Return(token)
		rec := expectJSON(ctx)

		called := false
		handler := rolegate.RequireToken(cfg)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.status)
		assert.Equal(t, map[string]string{"msg": "Token is not valid"}, rec.body)
	})

	t.Run("bearer token in Authorization header works", func(t *testing.T) {
		token := tokenFor(t, service, "user-123", auth.RoleVisitor)

		ctx := router.NewMockContext()
		ctx.On("GetString", "X-Auth-Token", "").Return("")
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
		ctx.On("Locals", "user", mock.Anything).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything).Return()

		called := false
		handler := rolegate.RequireToken(cfg)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.True(t, called)
	})
}

func TestRequireRole(t *testing.T) {
	newClaims := func(t *testing.T, subject, role string) auth.AuthClaims {
		t.Helper()
		service := auth.NewTokenService(testSigningKey, 100, "", nil, nil)
		claims, err := service.Validate(tokenFor(t, service, subject, role))
		require.NoError(t, err)
		return claims
	}

	t.Run("allowed role reaches the handler with the resolved identity", func(t *testing.T) {
		resolver := auth.ResolverFunc(func(ctx context.Context, subjectID string) (auth.Identity, error) {
			return &mockIdentity{id: subjectID, role: auth.RoleAdmin}, nil
		})

		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = newClaims(t, "user-123", auth.RoleAdmin)
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything).Return()
		ctx.On("Locals", "identity", mock.Anything).Return(nil)

		called := false
		handler := rolegate.RequireRole(rolegate.Config{Resolver: resolver}, auth.RoleAdmin)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.True(t, called)
	})

	t.Run("resolved role outranks the token snapshot", func(t *testing.T) {
		// token says appliedAlumni; the store has since promoted the user
		resolver := auth.ResolverFunc(func(ctx context.Context, subjectID string) (auth.Identity, error) {
			return &mockIdentity{id: subjectID, role: auth.RoleRegisteredAlumni}, nil
		})

		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = newClaims(t, "user-123", auth.RoleAppliedAlumni)
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything).Return()
		ctx.On("Locals", "identity", mock.Anything).Return(nil)

		called := false
		handler := rolegate.RequireRole(
			rolegate.Config{Resolver: resolver},
			auth.RoleRegisteredAlumni,
		)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.True(t, called)
	})

	t.Run("insufficient role is 403", func(t *testing.T) {
		resolver := auth.ResolverFunc(func(ctx context.Context, subjectID string) (auth.Identity, error) {
			return &mockIdentity{id: subjectID, role: auth.RoleAppliedAlumni}, nil
		})

		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = newClaims(t, "user-123", auth.RoleAppliedAlumni)
		ctx.On("Context").Return(context.Background())
		rec := expectJSON(ctx)

		called := false
		handler := rolegate.RequireRole(rolegate.Config{Resolver: resolver}, auth.RoleAdmin)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, rec.status)
		assert.Equal(t, map[string]string{"msg": "Access denied"}, rec.body)
	})

	t.Run("unknown subject is 404", func(t *testing.T) {
		resolver := auth.ResolverFunc(func(ctx context.Context, subjectID string) (auth.Identity, error) {
			return nil, auth.ErrIdentityNotFound
		})

		ctx := router.NewMockContext()
		ctx.LocalsMock["user"] = newClaims(t, "user-gone", auth.RoleAdmin)
		ctx.On("Context").Return(context.Background())
		rec := expectJSON(ctx)

		called := false
		handler := rolegate.RequireRole(rolegate.Config{Resolver: resolver}, auth.RoleAdmin)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.False(t, called)
		assert.Equal(t, http.StatusNotFound, rec.status)
		assert.Equal(t, map[string]string{"msg": "User not found"}, rec.body)
	})

	t.Run("store outage is 503, never 200 and never 403", func(t *testing.T) {
		resolver := auth.ResolverFunc(func(ctx context.Context, subjectID string) (auth.Identity, error) {
			return nil, auth.ErrStoreUnavailable.Clone()
		})

		ctx := router.NewMockContext()
		// the token snapshot claims admin; the gate must not trust it
		ctx.LocalsMock["user"] = newClaims(t, "user-123", auth.RoleAdmin)
		ctx.On("Context").Return(context.Background())
		rec := expectJSON(ctx)

		called := false
		handler := rolegate.RequireRole(rolegate.Config{Resolver: resolver}, auth.RoleAdmin)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.False(t, called, "store outage must never pass the gate")
		assert.Equal(t, http.StatusServiceUnavailable, rec.status)
		assert.NotEqual(t, http.StatusForbidden, rec.status)
	})

	t.Run("missing claims means the token stage did not run", func(t *testing.T) {
		resolver := auth.ResolverFunc(func(ctx context.Context, subjectID string) (auth.Identity, error) {
			return &mockIdentity{id: subjectID, role: auth.RoleAdmin}, nil
		})

		ctx := router.NewMockContext()
		rec := expectJSON(ctx)

		called := false
		handler := rolegate.RequireRole(rolegate.Config{Resolver: resolver}, auth.RoleAdmin)(passThrough(&called))

		require.NoError(t, handler(ctx))
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.status)
	})
}

func TestProtected_Order(t *testing.T) {
	service := auth.NewTokenService(testSigningKey, 100, "", nil, nil)

	resolveCalled := false
	resolver := auth.ResolverFunc(func(ctx context.Context, subjectID string) (auth.Identity, error) {
		resolveCalled = true
		return &mockIdentity{id: subjectID, role: auth.RoleAdmin}, nil
	})

	cfg := rolegate.Config{TokenValidator: service, Resolver: resolver}

	// expired token: the token stage must short-circuit before resolution
	ctx := router.NewMockContext()
	ctx.On("GetString", "X-Auth-Token", "").Return(signExpired(t))
	rec := expectJSON(ctx)

	called := false
	var handler router.HandlerFunc = passThrough(&called)
	gate := rolegate.Protected(cfg, auth.RoleAdmin)
	for i := len(gate) - 1; i >= 0; i-- {
		handler = gate[i](handler)
	}

	require.NoError(t, handler(ctx))
	assert.False(t, called)
	assert.False(t, resolveCalled, "authorization must not run after failed authentication")
	assert.Equal(t, http.StatusUnauthorized, rec.status)
}

func signExpired(t *testing.T) string {
	t.Helper()

	service := auth.NewTokenService(testSigningKey, 100, "", nil, nil)

	claims := &auth.JWTClaims{}
	claims.RegisteredClaims.Subject = "user-123"
	claims.RegisteredClaims.ExpiresAt = jwtNumericDate(-1)
	claims.RegisteredClaims.IssuedAt = jwtNumericDate(-2)
	claims.UID = "user-123"

	token, err := service.SignClaims(claims)
	require.NoError(t, err)
	return token
}

func jwtNumericDate(hours int) *jwt.NumericDate {
	return jwt.NewNumericDate(time.Now().Add(time.Duration(hours) * time.Hour))
}
