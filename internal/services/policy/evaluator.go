package policy

import (
	"errors"
	"fmt"
	"slices"

	"github.com/takenaka/sekimori/internal/entities"
)

// ErrUnknownClient is returned when a request carries no resolvable client
// address. It is raised before rule matching begins and is equivalent to a
// deny; it is not a policy defect.
var ErrUnknownClient = errors.New("no resolvable client address")

// Context carries the request attributes a policy decision depends on. The
// evaluator holds no state of its own: a Context plus a parsed rule set
// fully determines the decision.
type Context struct {
	// ClientIP is the caller's IP address literal.
	ClientIP string

	// ClientHost is the caller's reverse-resolved hostname. May equal
	// ClientIP when no name resolution was possible.
	ClientHost string

	// Caller is the identity capability, or nil when no identity was
	// established for this request.
	Caller entities.RoleCallback

	// Indices are the target index names addressed by the request.
	// Empty for unscoped (cluster-wide) requests.
	Indices []string

	// Types are the target type names addressed by the request.
	Types []string
}

// Evaluate applies the parsed rule set to the request context.
//
// Exactly one default rule must exist; its value is the fallback decision.
// The remaining rules are tried in document order, and the first rule whose
// five gates (user, role, host, type, index) all pass supplies the decision.
// This is first-match, not best-match: document order is the only precedence,
// which lets an operator place narrow exceptions before broad allowances.
func Evaluate[T any](rules []*entities.Rule[T], ctx *Context) (T, error) {
	var zero T

	if ctx.ClientIP == "" && ctx.ClientHost == "" {
		return zero, ErrUnknownClient
	}

	fallback, err := defaultValue(rules)
	if err != nil {
		return zero, err
	}

	for _, rule := range rules {
		if rule.IsDefault() {
			continue
		}

		match, err := ruleMatches(rule, ctx)
		if err != nil {
			return zero, err
		}
		if match {
			return rule.Value(), nil
		}
	}

	return fallback, nil
}

// EvaluateDocument parses the policy document and evaluates it in one step.
// Rules are never retained between calls; every invocation sees a fresh
// snapshot of the policy text.
func EvaluateDocument[T any](doc []byte, kind Kind[T], ctx *Context) (T, error) {
	var zero T

	rules, err := ParseRules(doc, kind)
	if err != nil {
		return zero, err
	}
	return Evaluate(rules, ctx)
}

func defaultValue[T any](rules []*entities.Rule[T]) (T, error) {
	var zero T

	found := false
	var value T
	for _, rule := range rules {
		if !rule.IsDefault() {
			continue
		}
		if found {
			return zero, fmt.Errorf("%w: multiple default rules", ErrMalformedPolicy)
		}
		found = true
		value = rule.Value()
	}

	if !found {
		return zero, fmt.Errorf("%w: no default rule", ErrMalformedPolicy)
	}
	return value, nil
}

func ruleMatches[T any](rule *entities.Rule[T], ctx *Context) (bool, error) {
	if !userGate(rule.Users, ctx.Caller) {
		return false, nil
	}
	if !roleGate(rule.Roles, ctx.Caller) {
		return false, nil
	}

	match, err := hostGate(rule.Hosts, ctx)
	if err != nil || !match {
		return false, err
	}

	if !typeGate(rule.Types, ctx.Types) {
		return false, nil
	}
	return indexGate(rule.Indices, ctx.Indices), nil
}

// open reports whether the dimension set places no constraint on matching.
func open(set []string) bool {
	return len(set) == 0 || slices.Contains(set, entities.Wildcard)
}

// userGate passes when the dimension is unconstrained, or the caller's
// username is known and listed. A missing identity never grants anything.
func userGate(users []string, caller entities.RoleCallback) bool {
	if open(users) {
		return true
	}
	if caller == nil || caller.Username() == "" {
		return false
	}
	return slices.Contains(users, caller.Username())
}

// roleGate passes when the dimension is unconstrained, or the membership
// callback confirms at least one listed role.
func roleGate(roles []string, caller entities.RoleCallback) bool {
	if open(roles) {
		return true
	}
	if caller == nil {
		return false
	}
	for _, role := range roles {
		if caller.HasRole(role) {
			return true
		}
	}
	return false
}

// hostGate passes when the dimension is unconstrained, or at least one
// pattern matches the client's hostname or IP literal.
func hostGate(hosts []string, ctx *Context) (bool, error) {
	if open(hosts) {
		return true, nil
	}
	for _, pattern := range hosts {
		re, err := compileWildcard(pattern)
		if err != nil {
			return false, err
		}
		if re.MatchString(ctx.ClientHost) || re.MatchString(ctx.ClientIP) {
			return true, nil
		}
	}
	return false, nil
}

// typeGate passes when the dimension is unconstrained or covers every
// target type.
func typeGate(types, targets []string) bool {
	return open(types) || containsAll(types, targets)
}

// indexGate passes when the dimension is unconstrained or covers every
// target index. An explicit index restriction can never match an unscoped
// request: with no index named there is nothing the restriction could
// legitimately apply to.
func indexGate(indices, targets []string) bool {
	if open(indices) {
		return true
	}
	if len(targets) == 0 {
		return false
	}
	return containsAll(indices, targets)
}

func containsAll(set, targets []string) bool {
	for _, t := range targets {
		if !slices.Contains(set, t) {
			return false
		}
	}
	return true
}
