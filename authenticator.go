package auth

import (
	"context"
	"reflect"
)

// Auther implements Authenticator: it verifies credentials through the
// identity provider and issues tokens through the token service.
type Auther struct {
	provider     IdentityProvider
	repo         RepositoryManager
	logger       Logger
	tokenService TokenService
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, repo RepositoryManager, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		repo:         repo,
		logger:       defLogger{},
		tokenService: tokenService,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTokenService overrides the default token service.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and issues a token. The returned identity
// is the freshly resolved record, so callers can hand it to the client
// alongside the token.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, Identity, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		return "", nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Login token generation error", "error", err)
		return "", nil, err
	}

	return token, identity, nil
}

// Register creates a new identity and issues its first token. The caller is
// expected to follow with an identity fetch; registration returns no
// identity payload on the wire.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (string, error) {
	handler := RegisterUserHandler{Repo: s.repo}

	user, err := handler.Execute(ctx, msg)
	if err != nil {
		s.logger.Error("Register error", "error", err)
		return "", err
	}

	token, err := s.tokenService.Generate(user.Identity())
	if err != nil {
		s.logger.Error("Register token generation error", "error", err)
		return "", err
	}

	return token, nil
}

// IdentityFromSubject resolves the authoritative identity for a token
// subject.
func (s *Auther) IdentityFromSubject(ctx context.Context, subjectID string) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, subjectID)
	if err != nil {
		s.logger.Error("IdentityFromSubject find identity error", "error", err)
		return nil, err
	}
	return identity, nil
}

// SessionFromToken verifies a raw token and returns its claims.
func (s Auther) SessionFromToken(raw string) (AuthClaims, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}
	return claims, nil
}

var _ Authenticator = (*Auther)(nil)
