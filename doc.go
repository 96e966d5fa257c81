// Package auth provides the authentication and authorization core of the
// alumni network: JWT issuance and verification, identity resolution against
// the users store, and role-gated access control.
//
// Token lifecycle:
//   - TokenService signs HS256 tokens carrying the subject id and a role
//     snapshot. The snapshot is informational only; authorization always
//     re-resolves the role from the store so revocations and promotions take
//     effect without re-login.
//   - Validation failures are classified on the error taxonomy (expired,
//     invalid signature, malformed) so callers can branch without string
//     matching.
//
// Identity resolution:
//   - IdentityResolver maps a verified token subject to the authoritative
//     identity record. Failures are split into ErrIdentityNotFound (the
//     subject no longer exists) and ErrStoreUnavailable (the store could not
//     answer). The role gate in middleware/rolegate surfaces the latter as a
//     503 and never silently degrades to the token's role snapshot.
//
// Roles:
//   - Four roles cover the network: visitor, appliedAlumni, registeredAlumni,
//     and admin. Registration always starts at appliedAlumni; promotion to
//     registeredAlumni goes through ApproveProfileHandler.
//
// The session package holds the client-side counterpart: a session state
// machine with a persistent identity cache.
package auth
