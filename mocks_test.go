package auth_test

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	auth "github.com/openalumni/go-alumni-auth"
)

// MockIdentity implements auth.Identity for testing
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Username() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Email() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Role() string {
	args := m.Called()
	return args.String(0)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// MockUserStore implements auth.UserStore and auth.SubjectSource
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserStore) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (auth.Identity, error) {
	args := m.Called(ctx, identifier, password)
	identity, _ := args.Get(0).(auth.Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (auth.Identity, error) {
	args := m.Called(ctx, identifier)
	identity, _ := args.Get(0).(auth.Identity)
	return identity, args.Error(1)
}

// fakeUsers is a hand-rolled auth.Users for exercising the command handlers
// without a database. Only the methods the handlers touch are implemented;
// everything else panics loudly.
type fakeUsers struct {
	auth.Users

	byEmail map[string]*auth.User
	byID    map[string]*auth.User

	registered []*auth.User
	roleSets   map[string]auth.UserRole
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byEmail:  map[string]*auth.User{},
		byID:     map[string]*auth.User{},
		roleSets: map[string]auth.UserRole{},
	}
}

func (f *fakeUsers) add(user *auth.User) {
	f.byEmail[user.Email] = user
	f.byID[user.ID.String()] = user
}

func (f *fakeUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	if user, ok := f.byEmail[email]; ok {
		return user, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	if user, ok := f.byID[identifier]; ok {
		return user, nil
	}
	if user, ok := f.byEmail[identifier]; ok {
		return user, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	f.registered = append(f.registered, user)
	f.add(user)
	return user, nil
}

func (f *fakeUsers) UpdateRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role auth.UserRole) (*auth.User, error) {
	user, ok := f.byID[id.String()]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	user.Role = role
	f.roleSets[id.String()] = role
	return user, nil
}

// fakeRepoManager runs transaction bodies inline, no database involved.
type fakeRepoManager struct {
	users *fakeUsers
}

func (f *fakeRepoManager) Validate() error { return nil }
func (f *fakeRepoManager) MustValidate()   {}

func (f *fakeRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	return fn(ctx, bun.Tx{})
}

func (f *fakeRepoManager) Users() auth.Users { return f.users }

var _ auth.RepositoryManager = (*fakeRepoManager)(nil)
