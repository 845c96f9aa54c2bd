// Package session supplies the authenticated identity that scopes
// conversations.
//
// The core treats the session as a capability check: a Boundary yields the
// current owner ID or "" when signed out, and every repository call is
// scoped to that ID. Manager implements the account side — sign-up with
// bcrypt password hashes, sign-in issuing HS256 JWTs, and token
// verification resolving the owner from the "sub" claim. Static provides a
// fixed identity for tests and single-user deployments.
package session
