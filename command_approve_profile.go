package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ApproveProfileMessage promotes an applied alumni to registered. Issued
// tokens keep their stale role snapshot; clients pick the new role up on
// their next identity refresh.
type ApproveProfileMessage struct {
	UserID uuid.UUID `json:"user_id"`
}

func (e ApproveProfileMessage) Type() string { return "user.approve_profile" }

// ApproveProfileHandler applies the promotion against the users store.
type ApproveProfileHandler struct {
	Repo RepositoryManager
}

func (h *ApproveProfileHandler) Execute(ctx context.Context, event ApproveProfileMessage) (*User, error) {
	if event.UserID == uuid.Nil {
		return nil, goerrors.New("user id is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	var updated *User

	err := h.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.Repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return ErrIdentityNotFound.Clone().WithMetadata(map[string]any{
					"user_id": event.UserID.String(),
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for approval")
		}

		user.EnsureRole()
		if user.Role == RoleRegisteredAlumni {
			updated = user
			return nil
		}

		if user.Role != RoleAppliedAlumni {
			return goerrors.New("only applied alumni can be approved", goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict).
				WithMetadata(map[string]any{
					"user_id": event.UserID.String(),
					"role":    user.Role,
				})
		}

		updated, err = h.Repo.Users().UpdateRoleTx(ctx, tx, user.ID, RoleRegisteredAlumni)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to promote user role")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile approval transaction failed")
	}

	return updated, nil
}
