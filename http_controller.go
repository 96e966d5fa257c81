package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPControllerRoutes holds the paths the controller mounts.
type HTTPControllerRoutes struct {
	Session  string
	Register string
}

// HTTPController exposes the auth operations as a JSON API:
//
//	POST {Session}  login: credentials in, token + user out
//	GET  {Session}  current identity for the bearer token
//	POST {Register} registration: profile in, token out
//
// The GET route must be mounted behind the token gate; the controller reads
// the verified claims from the router locals.
type HTTPController struct {
	Logger       Logger
	Repo         RepositoryManager
	Auther       Authenticator
	Routes       *HTTPControllerRoutes
	ContextKey   string
	ErrorHandler func(ctx router.Context, err error) error
}

type HTTPControllerOption func(*HTTPController) *HTTPController

func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRoutes(routes *HTTPControllerRoutes) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithControllerErrorHandler(handler func(ctx router.Context, err error) error) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func NewHTTPController(auther Authenticator, repo RepositoryManager, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Auther:       auther,
		Repo:         repo,
		Logger:       defLogger{},
		ContextKey:   "user",
		ErrorHandler: WriteError,
		Routes: &HTTPControllerRoutes{
			Session:  "/api/auth",
			Register: "/api/users",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	return c
}

// RegisterRoutes mounts the controller. The protect middleware guards the
// identity fetch only; login and registration stay open.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar, protect ...router.MiddlewareFunc) {
	group.Post(c.Routes.Session, c.LoginPost)
	group.Get(c.Routes.Session, c.CurrentIdentity, protect...)
	group.Post(c.Routes.Register, c.RegistrationCreate)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginResponse is the login wire payload. The user record rides along so
// clients can hydrate their session without a second round trip.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// TokenResponse is the registration wire payload: token only, clients
// follow with an identity fetch.
type TokenResponse struct {
	Token string `json:"token"`
}

func (c *HTTPController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid login payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithCode(goerrors.CodeBadRequest))
	}

	token, identity, err := c.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		c.Logger.Error("Login error", "error", err)
		return c.ErrorHandler(ctx, err)
	}

	user, err := c.Repo.Users().GetByIdentifier(ctx.Context(), identity.ID())
	if err != nil {
		// token already issued, hand it over without the record
		c.Logger.Warn("Login user lookup failed", "error", err)
		return ctx.JSON(router.StatusOK, LoginResponse{Token: token})
	}

	return ctx.JSON(router.StatusOK, LoginResponse{Token: token, User: user})
}

// CurrentIdentity returns the authoritative record for the verified token
// subject. A stale token for a deleted user gets 404, a store outage 503.
func (c *HTTPController) CurrentIdentity(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, c.ContextKey)
	if !ok {
		return c.ErrorHandler(ctx, ErrNoToken)
	}

	user, err := c.Repo.Users().GetByIdentifier(ctx.Context(), claims.Subject())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return c.ErrorHandler(ctx, ErrIdentityNotFound)
		}
		c.Logger.Error("CurrentIdentity store error", "error", err)
		return c.ErrorHandler(ctx, ErrStoreUnavailable.Clone())
	}

	return ctx.JSON(router.StatusOK, user)
}

func (c *HTTPController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegisterUserMessage)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid registration payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithCode(goerrors.CodeBadRequest))
	}

	token, err := c.Auther.Register(ctx.Context(), *payload)
	if err != nil {
		c.Logger.Error("Registration error", "error", err)
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, TokenResponse{Token: token})
}
