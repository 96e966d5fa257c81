package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// SubjectSource is the narrow read surface the resolver needs from the
// identity store.
type SubjectSource interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
}

// StoreResolver resolves token subjects against the users repository.
type StoreResolver struct {
	store  SubjectSource
	logger Logger
}

var _ IdentityResolver = (*StoreResolver)(nil)

// NewStoreResolver returns an IdentityResolver backed by the given store.
func NewStoreResolver(store SubjectSource) *StoreResolver {
	return &StoreResolver{
		store:  store,
		logger: defLogger{},
	}
}

func (r *StoreResolver) WithLogger(logger Logger) *StoreResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Resolve maps a subject id to its authoritative identity record. An unknown
// subject yields ErrIdentityNotFound; a store that cannot answer yields
// ErrStoreUnavailable. The two are never collapsed, so the role gate can make
// an explicit policy decision for each.
func (r *StoreResolver) Resolve(ctx context.Context, subjectID string) (Identity, error) {
	if subjectID == "" {
		return nil, ErrIdentityNotFound.Clone().WithMetadata(map[string]any{
			"reason": "empty subject id",
		})
	}

	user, err := r.store.GetByIdentifier(ctx, subjectID)
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound.Clone().WithMetadata(map[string]any{
				"subject_id": subjectID,
			})
		}

		r.logger.Error("identity resolve store failure", "subject_id", subjectID, "error", err)
		return nil, errors.Wrap(err, ErrStoreUnavailable.Category, ErrStoreUnavailable.Message).
			WithTextCode(ErrStoreUnavailable.TextCode).
			WithCode(ErrStoreUnavailable.Code)
	}

	if user == nil {
		return nil, ErrIdentityNotFound.Clone().WithMetadata(map[string]any{
			"subject_id": subjectID,
		})
	}

	user.EnsureRole()
	return user.Identity(), nil
}

// ResolverFunc adapts a function into an IdentityResolver.
type ResolverFunc func(ctx context.Context, subjectID string) (Identity, error)

// Resolve satisfies the IdentityResolver interface.
func (f ResolverFunc) Resolve(ctx context.Context, subjectID string) (Identity, error) {
	if f == nil {
		return nil, ErrStoreUnavailable
	}
	return f(ctx, subjectID)
}
