package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// UserStore is the store surface the provider needs to verify credentials.
type UserStore interface {
	GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
}

// UserProvider verifies credentials against the users store.
type UserProvider struct {
	store     UserStore
	Validator func(*User) error
	logger    Logger
}

var _ IdentityProvider = (*UserProvider)(nil)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserStore) *UserProvider {
	return &UserProvider{
		store:     store,
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity will find the user, compare to the password, and return
// identity. An unknown email and a wrong password are indistinguishable to
// the caller.
func (u UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByEmail(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	user.EnsureRole()
	return user.Identity(), nil
}

// FindIdentityByIdentifier resolves a user by id or email without checking
// credentials.
func (u UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, ErrIdentityNotFound
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	user.EnsureRole()
	return user.Identity(), nil
}

func defaultValidator(u *User) error {
	u.EnsureRole()
	if IsValidRole(u.Role) {
		return nil
	}
	return errors.New("user has an unknown or invalid role", errors.CategoryAuth).
		WithTextCode("INVALID_ROLE").
		WithMetadata(map[string]any{"role": u.Role, "user_id": u.ID.String()})
}
