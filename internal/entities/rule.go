package entities

import (
	"fmt"
	"strings"
)

// Wildcard is the universal match token usable in every rule dimension.
const Wildcard = "*"

// Rule is one authorization statement: five dimension sets (hosts, users,
// roles, indices, types) bound to a single decision value of type T.
// An empty dimension, like one containing only the wildcard, does not
// constrain matching.
//
// Rules are built incrementally while streaming a policy document and must
// not be mutated after parsing completes.
type Rule[T any] struct {
	Hosts   []string
	Users   []string
	Roles   []string
	Indices []string
	Types   []string

	value    T
	hasValue bool
}

// AddHost appends a host/IP wildcard pattern to the host dimension.
func (r *Rule[T]) AddHost(pattern string) error {
	return appendDimension(&r.Hosts, pattern, "host pattern")
}

// AddUser appends an exact username to the user dimension.
func (r *Rule[T]) AddUser(name string) error {
	return appendDimension(&r.Users, name, "user name")
}

// AddRole appends a role name to the role dimension.
func (r *Rule[T]) AddRole(name string) error {
	return appendDimension(&r.Roles, name, "role name")
}

// AddIndex appends an exact index name to the index dimension.
func (r *Rule[T]) AddIndex(name string) error {
	return appendDimension(&r.Indices, name, "index name")
}

// AddType appends an exact type name to the type dimension.
func (r *Rule[T]) AddType(name string) error {
	return appendDimension(&r.Types, name, "type name")
}

// SetValue binds the decision value this rule grants. A rule without a value
// is incomplete and must be rejected by the parser.
func (r *Rule[T]) SetValue(v T) {
	r.value = v
	r.hasValue = true
}

// Value returns the decision value this rule grants.
func (r *Rule[T]) Value() T {
	return r.value
}

// Complete reports whether a decision value has been set.
func (r *Rule[T]) Complete() bool {
	return r.hasValue
}

// IsDefault reports whether this is the fallback rule: every dimension is
// either empty or exactly the wildcard.
func (r *Rule[T]) IsDefault() bool {
	return wildcardOrEmpty(r.Hosts) &&
		wildcardOrEmpty(r.Users) &&
		wildcardOrEmpty(r.Roles) &&
		wildcardOrEmpty(r.Indices) &&
		wildcardOrEmpty(r.Types)
}

// Equal reports whether two rules are structurally identical, i.e. have the
// same five dimension sets regardless of element order. Decision values are
// not compared: two rules with identical dimensions are a configuration
// defect even when they grant different values.
func (r *Rule[T]) Equal(other *Rule[T]) bool {
	return sameSet(r.Hosts, other.Hosts) &&
		sameSet(r.Users, other.Users) &&
		sameSet(r.Roles, other.Roles) &&
		sameSet(r.Indices, other.Indices) &&
		sameSet(r.Types, other.Types)
}

func appendDimension(dim *[]string, v, what string) error {
	v = strings.TrimSpace(v)
	if v == "" || strings.Contains(v, ",") {
		return fmt.Errorf("%q is not a valid %s", v, what)
	}
	*dim = append(*dim, v)
	return nil
}

func wildcardOrEmpty(dim []string) bool {
	if len(dim) == 0 {
		return true
	}
	return len(dim) == 1 && dim[0] == Wildcard
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}
