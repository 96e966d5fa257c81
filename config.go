package auth

import (
	"os"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Options is a concrete Config. The signing key has no default on purpose:
// a missing secret is a configuration error, never a silent fallback.
type Options struct {
	SigningKey      string   `json:"signing_key"`
	SigningMethod   string   `json:"signing_method"`
	ContextKey      string   `json:"context_key"`
	TokenExpiration int      `json:"token_expiration"`
	TokenLookup     string   `json:"token_lookup"`
	AuthScheme      string   `json:"auth_scheme"`
	Issuer          string   `json:"issuer"`
	Audience        []string `json:"audience"`
}

var _ Config = Options{}

// DefaultTokenLookup accepts the legacy raw header first, then a standard
// Authorization bearer header.
const DefaultTokenLookup = "header:X-Auth-Token,header:Authorization"

// NewOptions applies defaults for everything except the signing key.
func NewOptions(signingKey string) Options {
	return Options{
		SigningKey:      signingKey,
		SigningMethod:   "HS256",
		ContextKey:      "user",
		TokenExpiration: DefaultTokenExpiration,
		TokenLookup:     DefaultTokenLookup,
		AuthScheme:      "Bearer",
	}
}

// OptionsFromEnv reads JWT_SECRET and optional JWT_TTL_HOURS. Validate will
// reject the result when JWT_SECRET is unset.
func OptionsFromEnv() Options {
	opts := NewOptions(os.Getenv("JWT_SECRET"))
	if raw := os.Getenv("JWT_TTL_HOURS"); raw != "" {
		if hours, err := strconv.Atoi(raw); err == nil && hours > 0 {
			opts.TokenExpiration = hours
		}
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		opts.Issuer = issuer
	}
	return opts
}

// Validate will run validation rules
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&o.TokenExpiration, validation.Required, validation.Min(1)),
	)
}

func (o Options) GetSigningKey() string { return o.SigningKey }

func (o Options) GetSigningMethod() string {
	if o.SigningMethod == "" {
		return "HS256"
	}
	return o.SigningMethod
}

func (o Options) GetContextKey() string {
	if o.ContextKey == "" {
		return "user"
	}
	return o.ContextKey
}

func (o Options) GetTokenExpiration() int {
	if o.TokenExpiration <= 0 {
		return DefaultTokenExpiration
	}
	return o.TokenExpiration
}

func (o Options) GetTokenLookup() string {
	if o.TokenLookup == "" {
		return DefaultTokenLookup
	}
	return o.TokenLookup
}

func (o Options) GetAuthScheme() string {
	if o.AuthScheme == "" {
		return "Bearer"
	}
	return o.AuthScheme
}

func (o Options) GetIssuer() string { return o.Issuer }

func (o Options) GetAudience() []string { return o.Audience }
