package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role within the alumni network
type UserRole = string

const (
	// RoleVisitor can browse public resources only
	RoleVisitor UserRole = "visitor"
	// RoleAppliedAlumni has submitted a profile pending approval
	RoleAppliedAlumni UserRole = "appliedAlumni"
	// RoleRegisteredAlumni has an approved alumni profile
	RoleRegisteredAlumni UserRole = "registeredAlumni"
	// RoleAdmin manages schools, events, and profile approvals
	RoleAdmin UserRole = "admin"
)

// User is the authoritative identity record. It is created by registration
// and mutated by approval workflows; the auth core only ever reads it.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Avatar        string     `bun:"avatar" json:"avatar,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureRole normalizes a missing role to the registration default.
func (u *User) EnsureRole() {
	if u != nil && u.Role == "" {
		u.Role = RoleVisitor
	}
}

// Identity implementation, so a *User can be handed to the token issuer
// without an adapter.

func (u *User) Identity() Identity {
	return userIdentity{
		id:    u.ID.String(),
		name:  u.Name,
		email: u.Email,
		role:  u.Role,
	}
}

type userIdentity struct {
	id    string
	name  string
	email string
	role  string
}

func (a userIdentity) ID() string       { return a.id }
func (a userIdentity) Username() string { return a.name }
func (a userIdentity) Email() string    { return a.email }
func (a userIdentity) Role() string     { return a.role }

var _ Identity = userIdentity{}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}
	record.EnsureRole()
	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
}
