// Package rolegate implements the ordered authentication-then-authorization
// pipeline for protected operations. RequireToken proves the bearer token's
// provenance and freshness without touching the identity store; RequireRole
// resolves the subject against the store and checks the resolved role, never
// the token's role snapshot. Routes compose the two explicitly, and the
// pipeline short-circuits on the first failure.
package rolegate

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	auth "github.com/openalumni/go-alumni-auth"
)

// ErrMissingToken is what extractors return when no token is present.
var ErrMissingToken = auth.ErrNoToken

// Config drives both gate stages.
type Config struct {
	// Filter skips the gate entirely when it returns true.
	Filter func(router.Context) bool
	// SuccessHandler, when set, replaces the downstream handler after all
	// checks pass.
	SuccessHandler router.HandlerFunc
	// ErrorHandler translates gate failures into responses. The default
	// writes the {msg: ...} wire shape with the error's HTTP code.
	ErrorHandler router.ErrorHandler

	// TokenValidator is required for RequireToken.
	TokenValidator auth.TokenValidator
	// Resolver is required for RequireRole.
	Resolver auth.IdentityResolver

	// ContextKey is the locals key for verified claims. Default "user".
	ContextKey string
	// IdentityKey is the locals key for the resolved identity. Default
	// "identity".
	IdentityKey string

	// TokenLookup declares where tokens are read from. Defaults to the
	// legacy X-Auth-Token header followed by Authorization.
	TokenLookup string
	// AuthScheme is the Authorization header scheme. Default "Bearer".
	AuthScheme string
}

func (cfg Config) withDefaults() Config {
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.IdentityKey == "" {
		cfg.IdentityKey = "identity"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = auth.DefaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// DefaultErrorHandler writes the {msg: ...} body with the rich error's HTTP
// code, falling back to 401 for unclassified failures.
func DefaultErrorHandler(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "Token is not valid").
			WithCode(errors.CodeUnauthorized)
	}

	code := richErr.Code
	if code == 0 {
		code = http.StatusUnauthorized
	}

	return ctx.JSON(code, map[string]string{
		"msg": richErr.Message,
	})
}

// RequireToken extracts and verifies the bearer token. Verification is
// stateless; the identity store is not consulted. On success the verified
// claims are stored under ContextKey.
func RequireToken(config ...Config) router.MiddlewareFunc {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg = cfg.withDefaults()

	if cfg.TokenValidator == nil {
		panic("rolegate: RequireToken configuration needs a TokenValidator")
	}

	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawToken(ctx, extractors)
			if err != nil || raw == "" {
				return cfg.ErrorHandler(ctx, auth.ErrNoToken)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				if auth.IsTokenExpiredError(err) {
					return cfg.ErrorHandler(ctx, auth.ErrTokenExpired)
				}
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claims)
			ctx.SetContext(auth.WithClaimsContext(ctx.Context(), claims))

			if cfg.SuccessHandler != nil {
				return cfg.SuccessHandler(ctx)
			}
			return hf(ctx)
		}
	}
}

// RequireRole resolves the token subject to its authoritative identity and
// checks the resolved role against the operation's allowed set.
//
// Outcomes are kept distinguishable on purpose: an unknown subject is 404, a
// disallowed role is 403, and a store outage is 503. The gate never falls
// back to the token's role snapshot when the store cannot answer; degraded
// mode stays a UX concern, not an authorization input.
func RequireRole(cfg Config, allowed ...auth.UserRole) router.MiddlewareFunc {
	cfg = cfg.withDefaults()

	if cfg.Resolver == nil {
		panic("rolegate: RequireRole configuration needs an IdentityResolver")
	}

	allowedSet := auth.NewRoleSet(allowed...)
	if len(allowedSet) == 0 {
		panic("rolegate: RequireRole needs at least one allowed role")
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			claims, ok := auth.GetRouterClaims(ctx, cfg.ContextKey)
			if !ok {
				// RequireToken did not run first; the pipeline order is
				// authentication before authorization, always.
				return cfg.ErrorHandler(ctx, auth.ErrNoToken)
			}

			identity, err := cfg.Resolver.Resolve(ctx.Context(), claims.Subject())
			if err != nil {
				switch {
				case auth.IsIdentityNotFound(err):
					return cfg.ErrorHandler(ctx, auth.ErrIdentityNotFound)
				case auth.IsStoreUnavailable(err):
					return cfg.ErrorHandler(ctx, err)
				default:
					return cfg.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryInternal, "identity resolution failed").
						WithCode(errors.CodeInternal))
				}
			}

			if !allowedSet.Contains(identity.Role()) {
				return cfg.ErrorHandler(ctx, auth.ErrForbidden.Clone().WithMetadata(map[string]any{
					"role":    identity.Role(),
					"allowed": allowedSet.Roles(),
				}))
			}

			ctx.Locals(cfg.IdentityKey, identity)
			ctx.SetContext(auth.WithIdentityContext(ctx.Context(), identity))

			if cfg.SuccessHandler != nil {
				return cfg.SuccessHandler(ctx)
			}
			return hf(ctx)
		}
	}
}

// Protected composes the full gate for a route: token check first, then the
// role check against the operation's declared set.
func Protected(cfg Config, allowed ...auth.UserRole) []router.MiddlewareFunc {
	return []router.MiddlewareFunc{
		RequireToken(cfg),
		RequireRole(cfg, allowed...),
	}
}
