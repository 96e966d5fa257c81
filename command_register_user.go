package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// RegisterUserMessage carries a registration request. New registrations
// always start as applied alumni; promotion happens through the approval
// workflow, never at signup.
type RegisterUserMessage struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(6, 100)),
	)
}

// RegisterUserHandler creates the identity record for a registration.
type RegisterUserHandler struct {
	Repo RepositoryManager
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(event.Email))

	err := h.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if existing, err := h.Repo.Users().GetByEmailTx(ctx, tx, email); err == nil && existing != nil {
			return ErrAlreadyRegistered.Clone().WithMetadata(map[string]any{
				"email": email,
			})
		} else if err != nil && !repository.IsRecordNotFound(err) && !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing registration")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Name = event.Name
		user.Email = email
		user.Avatar = event.Avatar
		user.PasswordHash = hash
		user.Role = RoleAppliedAlumni

		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		}

		if user, err = h.Repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return user, nil
}
