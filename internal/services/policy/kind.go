package policy

import (
	"fmt"

	"github.com/takenaka/sekimori/internal/entities"
)

// Kind describes how a decision value of type T is represented in a rule
// object: the name of the permission-bearing key and the conversion from the
// collected strings to T. The rule-matching algorithm itself is identical
// for every kind.
type Kind[T any] struct {
	// Field is the JSON key carrying the decision value in each rule object.
	Field string

	// Parse converts the key's collected string values into the decision.
	Parse func(values []string) (T, error)
}

// LevelKind evaluates permission-level rules ("permission" key).
func LevelKind() Kind[entities.PermissionLevel] {
	return Kind[entities.PermissionLevel]{
		Field: "permission",
		Parse: func(values []string) (entities.PermissionLevel, error) {
			if len(values) != 1 {
				return entities.LevelNone, fmt.Errorf("expected exactly one permission level, got %d", len(values))
			}
			return entities.ParsePermissionLevel(values[0])
		},
	}
}

// TokenKind evaluates data-security token rules ("dlstoken" key).
func TokenKind() Kind[[]string] {
	return Kind[[]string]{
		Field: "dlstoken",
		Parse: func(values []string) ([]string, error) {
			return values, nil
		},
	}
}

// FieldKind evaluates response field-restriction rules ("fields" key).
func FieldKind() Kind[[]string] {
	return Kind[[]string]{
		Field: "fields",
		Parse: func(values []string) ([]string, error) {
			return values, nil
		},
	}
}
