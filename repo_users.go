package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the identity store. The auth core reads through it; the only
// writes are registration and the approval workflow's role promotion.
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string, criteria ...repository.SelectCriteria) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	UpdateRole(ctx context.Context, id uuid.UUID, role UserRole) (*User, error)
	UpdateRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role UserRole) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email, criteria...)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string, criteria ...repository.SelectCriteria) (*User, error) {
	record := &User{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias.email = ?", strings.ToLower(strings.TrimSpace(email))).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) UpdateRole(ctx context.Context, id uuid.UUID, role UserRole) (*User, error) {
	return a.UpdateRoleTx(ctx, a.db, id, role)
}

func (a *users) UpdateRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role UserRole) (*User, error) {
	record := &User{}
	record.ID = id
	record.Role = role

	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(id.String()),
	}

	return a.Repository.UpdateTx(ctx, tx, record, criteria...)
}
