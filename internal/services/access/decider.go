package access

import (
	"errors"

	"github.com/takenaka/sekimori/internal/entities"
	"github.com/takenaka/sekimori/internal/services/action"
	"github.com/takenaka/sekimori/internal/services/policy"
)

// Decision is the outcome of gating one request.
type Decision struct {
	// Allowed reports whether the request may proceed at all.
	Allowed bool

	// Reason is the short diagnostic for a denial. It never grants more
	// than warranted and never leaks policy contents.
	Reason string

	// Action is the request's command class.
	Action action.Action

	// Level is the permission level the policy granted the caller.
	Level entities.PermissionLevel

	// Tokens are the caller's data-security tokens, used downstream for
	// field-level filtering. Nil when no data-security policy exists.
	Tokens []string
}

// Denial reasons. Clients match on these strings, so they never change.
const (
	ReasonNone  = "no permission (at all)"
	ReasonAdmin = "no permission (for admin actions)"
	ReasonWrite = "no permission (for write actions)"
	ReasonRead  = "no permission (for read actions)"
)

// Decider is the access decision point: it classifies the action, obtains
// the caller's permission level and data-security tokens from the policy
// evaluator, and applies the lattice threshold checks.
type Decider struct {
	classifier *action.Classifier
}

// NewDecider creates a Decider using the given classifier.
func NewDecider(classifier *action.Classifier) *Decider {
	return &Decider{classifier: classifier}
}

// Authorize produces the full decision for one request. levelDoc is the
// permission-level policy document; tokenDoc is the data-security token
// policy document, or nil when the site has none. Any configuration error
// is returned as-is and must be treated as a deny by the caller; partial
// evaluation of a broken policy never happens.
func (d *Decider) Authorize(levelDoc, tokenDoc []byte, ctx *policy.Context, path, method string) (*Decision, error) {
	level, err := policy.EvaluateDocument(levelDoc, policy.LevelKind(), ctx)
	if err != nil {
		return nil, err
	}

	decision := d.Decide(level, path, method)
	if !decision.Allowed || tokenDoc == nil {
		return decision, nil
	}

	tokens, err := policy.EvaluateDocument(tokenDoc, policy.TokenKind(), ctx)
	if err != nil {
		return nil, err
	}
	decision.Tokens = tokens
	return decision, nil
}

// Decide applies the threshold checks for an already-evaluated permission
// level, in fixed order; the first failing check determines the denial
// reason.
func (d *Decider) Decide(level entities.PermissionLevel, path, method string) *Decision {
	decision := &Decision{
		Action: d.classifier.Classify(path, method),
		Level:  level,
	}

	switch {
	case level == entities.LevelNone:
		decision.Reason = ReasonNone
	case decision.Action == action.Admin && !level.AtLeast(entities.LevelAll):
		decision.Reason = ReasonAdmin
	case decision.Action == action.Write && !level.AtLeast(entities.LevelReadWrite):
		decision.Reason = ReasonWrite
	case level == entities.LevelReadOnly && decision.Action != action.Read:
		decision.Reason = ReasonRead
	default:
		decision.Allowed = true
	}

	return decision
}

// IsConfigError reports whether an Authorize error came from the policy
// document itself rather than the request.
func IsConfigError(err error) bool {
	return errors.Is(err, policy.ErrMalformedPolicy)
}
