package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/openalumni/go-alumni-auth"
)

func testIdentity(id, role string) *MockIdentity {
	identity := &MockIdentity{}
	identity.On("ID").Return(id)
	identity.On("Role").Return(role)
	return identity
}

func TestTokenService_RoundTrip(t *testing.T) {
	service := auth.NewTokenService([]byte("test-signing-key-32bytes-minimum"), 100, "alumni", nil, nil)

	identity := testIdentity("user-123", auth.RoleAppliedAlumni)

	token, err := service.Generate(identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, "user-123", claims.Subject())
	assert.Equal(t, "user-123", claims.UserID())
	assert.Equal(t, auth.RoleAppliedAlumni, claims.RoleSnapshot())
	assert.WithinDuration(t, time.Now().Add(100*time.Hour), claims.Expires(), time.Minute)
}

func TestTokenService_ExpiredToken(t *testing.T) {
	key := []byte("test-signing-key-32bytes-minimum")
	service := auth.NewTokenService(key, 100, "", nil, nil)

	now := time.Now()
	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Hour)),
		},
		UID: "user-123",
	}

	token, err := service.SignClaims(claims)
	require.NoError(t, err)

	_, err = service.Validate(token)
	require.Error(t, err)
	assert.True(t, auth.IsTokenExpiredError(err))
	assert.Equal(t, auth.TextCodeTokenExpired, auth.TextCode(err))
}

func TestTokenService_TamperedSignature(t *testing.T) {
	service := auth.NewTokenService([]byte("test-signing-key-32bytes-minimum"), 100, "", nil, nil)
	other := auth.NewTokenService([]byte("another-signing-key-32bytes-long"), 100, "", nil, nil)

	token, err := other.Generate(testIdentity("user-123", auth.RoleAdmin))
	require.NoError(t, err)

	_, err = service.Validate(token)
	require.Error(t, err)
	assert.Equal(t, auth.TextCodeTokenInvalid, auth.TextCode(err))
}

func TestTokenService_MalformedToken(t *testing.T) {
	service := auth.NewTokenService([]byte("test-signing-key-32bytes-minimum"), 100, "", nil, nil)

	for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c"} {
		_, err := service.Validate(raw)
		require.Error(t, err, "token %q should not validate", raw)
		assert.True(t, auth.IsMalformedError(err), "token %q should classify as malformed", raw)
	}
}

func TestTokenService_IssuerMismatch(t *testing.T) {
	issued := auth.NewTokenService([]byte("test-signing-key-32bytes-minimum"), 100, "other-app", nil, nil)
	verifier := auth.NewTokenService([]byte("test-signing-key-32bytes-minimum"), 100, "alumni", nil, nil)

	token, err := issued.Generate(testIdentity("user-123", auth.RoleVisitor))
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.Error(t, err)
}

func TestTokenService_TokenIDUnique(t *testing.T) {
	service := auth.NewTokenService([]byte("test-signing-key-32bytes-minimum"), 100, "", nil, nil)

	identity := testIdentity("user-123", auth.RoleVisitor)

	first, err := service.Generate(identity)
	require.NoError(t, err)
	second, err := service.Generate(identity)
	require.NoError(t, err)

	// jti differs even for identical subjects issued in the same instant
	assert.NotEqual(t, strings.Split(first, ".")[2], strings.Split(second, ".")[2])
}
