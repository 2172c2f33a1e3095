package entities

// RoleCallback exposes the authenticated caller's identity to the policy
// evaluator. It is a capability, not a materialized role list: membership
// may require an external lookup, so the evaluator calls back per role name.
//
// A nil callback means no identity was established; non-wildcard user and
// role gates can never pass in that case.
type RoleCallback interface {
	// Username returns the resolved remote username, or "" if unknown.
	Username() string

	// HasRole reports whether the remote user is a member of the role.
	HasRole(role string) bool
}
