package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/openalumni/go-alumni-auth"
)

const textCodeNetworkError = "NETWORK_ERROR"

// ErrNetwork wraps transport-level failures: connection refused, DNS,
// timeouts. These are retryable and never destroy local session state.
var ErrNetwork = goerrors.New("network error", goerrors.CategoryOperation).
	WithTextCode(textCodeNetworkError).
	WithCode(http.StatusServiceUnavailable)

// IsNetworkError reports whether err is a retryable transport failure.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeNetworkError
	}
	return false
}

// IsAuthError reports whether err means the server rejected the session's
// credentials or token. The manager fails closed on these: purge the cache
// and force Unauthenticated.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryAuth ||
			richErr.Code == http.StatusUnauthorized
	}
	return false
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the signup payload.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// LoginResult carries the token plus the identity the server resolved
// during login, so the client can hydrate without a second round trip.
type LoginResult struct {
	Token    string    `json:"token"`
	Identity *Identity `json:"user,omitempty"`
}

// Transport issues the session's wire calls against the auth server.
// Errors come back classified: auth errors for rejected tokens and
// credentials, conflict for duplicate registration, network errors for
// transport failures.
type Transport interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	Register(ctx context.Context, fields Registration) (string, error)
	FetchIdentity(ctx context.Context, token string) (*Identity, error)
}

// HTTPTransport talks to the auth server's JSON API.
type HTTPTransport struct {
	baseURL     string
	client      *http.Client
	tokenHeader string
	logger      auth.Logger
}

type HTTPTransportOption func(*HTTPTransport)

// WithHTTPClient overrides the underlying client, including its timeout.
func WithHTTPClient(client *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithTokenHeader overrides the header that carries the bearer token.
func WithTokenHeader(header string) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if header != "" {
			t.tokenHeader = header
		}
	}
}

func WithTransportLogger(logger auth.Logger) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func NewHTTPTransport(baseURL string, opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      http.DefaultClient,
		tokenHeader: "X-Auth-Token",
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

func (t *HTTPTransport) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	result := &LoginResult{}

	err := t.do(ctx, http.MethodPost, "/api/auth", "", creds, result)
	if err != nil {
		if status(err) == http.StatusUnauthorized {
			return nil, auth.ErrInvalidCredentials.Clone()
		}
		return nil, err
	}

	if result.Token == "" {
		return nil, goerrors.New("login response missing token", goerrors.CategoryOperation).
			WithTextCode(textCodeNetworkError).
			WithCode(http.StatusServiceUnavailable)
	}

	return result, nil
}

func (t *HTTPTransport) Register(ctx context.Context, fields Registration) (string, error) {
	result := struct {
		Token string `json:"token"`
	}{}

	err := t.do(ctx, http.MethodPost, "/api/users", "", fields, &result)
	if err != nil {
		if status(err) == http.StatusConflict {
			return "", auth.ErrAlreadyRegistered.Clone()
		}
		return "", err
	}

	return result.Token, nil
}

func (t *HTTPTransport) FetchIdentity(ctx context.Context, token string) (*Identity, error) {
	identity := &Identity{}

	err := t.do(ctx, http.MethodGet, "/api/auth", token, nil, identity)
	if err != nil {
		switch status(err) {
		case http.StatusNotFound:
			return nil, auth.ErrIdentityNotFound.Clone()
		case http.StatusServiceUnavailable:
			if IsNetworkError(err) {
				return nil, err
			}
			return nil, auth.ErrStoreUnavailable.Clone()
		}
		return nil, err
	}

	return identity, nil
}

// do issues one JSON request. Transport failures become ErrNetwork; non-2xx
// responses become rich errors carrying the status code and the server's
// msg field.
func (t *HTTPTransport) do(ctx context.Context, method, path, token string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request payload")
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, payload)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(t.tokenHeader, token)
	}

	res, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("transport request failed", "method", method, "path", path, "error", err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "request failed").
			WithTextCode(textCodeNetworkError).
			WithCode(http.StatusServiceUnavailable)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusMultipleChoices {
		return t.decodeError(res)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode response").
			WithTextCode(textCodeNetworkError).
			WithCode(http.StatusServiceUnavailable)
	}

	return nil
}

func (t *HTTPTransport) decodeError(res *http.Response) error {
	wire := struct {
		Msg string `json:"msg"`
	}{}

	data, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err := json.Unmarshal(data, &wire); err != nil || wire.Msg == "" {
		wire.Msg = http.StatusText(res.StatusCode)
	}

	category := goerrors.CategoryOperation
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		category = goerrors.CategoryAuth
	case res.StatusCode == http.StatusForbidden:
		category = goerrors.CategoryAuthz
	case res.StatusCode == http.StatusNotFound:
		category = goerrors.CategoryNotFound
	case res.StatusCode == http.StatusConflict:
		category = goerrors.CategoryConflict
	case res.StatusCode == http.StatusBadRequest:
		category = goerrors.CategoryValidation
	}

	richErr := goerrors.New(wire.Msg, category).WithCode(res.StatusCode)

	if res.StatusCode == http.StatusUnauthorized {
		if strings.Contains(strings.ToLower(wire.Msg), "expired") {
			return richErr.WithTextCode(auth.TextCodeTokenExpired)
		}
		return richErr.WithTextCode(auth.TextCodeTokenInvalid)
	}

	return richErr
}

func status(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Code
	}
	return 0
}

var _ Transport = (*HTTPTransport)(nil)
