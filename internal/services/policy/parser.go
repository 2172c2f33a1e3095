package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/takenaka/sekimori/internal/entities"
)

// ErrMalformedPolicy marks every defect in a policy document itself:
// unparsable structure, invalid host patterns, incomplete or duplicate
// rules, and missing or ambiguous defaults. Callers must treat any error
// carrying this sentinel as a deny.
var ErrMalformedPolicy = errors.New("malformed security policy")

// ParseRules decodes a policy document, a JSON array of rule objects, into
// rules carrying decisions of type T.
//
// Each rule object may contain any subset of the dimension keys "hosts",
// "users", "roles", "indices" and "types", plus the kind's permission-bearing
// key. Values are a single string or an array of strings; strings are
// trimmed, and empty or comma-containing values are rejected. Unknown keys
// are rejected too: a typo'd dimension key would otherwise silently widen
// the rule's scope.
func ParseRules[T any](doc []byte, kind Kind[T]) ([]*entities.Rule[T], error) {
	var objects []map[string]json.RawMessage
	if err := json.Unmarshal(doc, &objects); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolicy, err)
	}

	rules := make([]*entities.Rule[T], 0, len(objects))
	for i, obj := range objects {
		rule, err := parseRule(obj, kind)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", ErrMalformedPolicy, i, err)
		}
		rules = append(rules, rule)
	}

	for i, rule := range rules {
		if !rule.Complete() {
			return nil, fmt.Errorf("%w: rule %d has no %q value", ErrMalformedPolicy, i, kind.Field)
		}
		for j := i + 1; j < len(rules); j++ {
			if rule.Equal(rules[j]) {
				return nil, fmt.Errorf("%w: rules %d and %d are structurally identical", ErrMalformedPolicy, i, j)
			}
		}
	}

	return rules, nil
}

func parseRule[T any](obj map[string]json.RawMessage, kind Kind[T]) (*entities.Rule[T], error) {
	rule := &entities.Rule[T]{}

	for key, raw := range obj {
		values, err := stringValues(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %v", key, err)
		}

		var add func(string) error
		switch key {
		case "hosts":
			add = rule.AddHost
		case "users":
			add = rule.AddUser
		case "roles":
			add = rule.AddRole
		case "indices":
			add = rule.AddIndex
		case "types":
			add = rule.AddType
		case kind.Field:
			v, err := kind.Parse(values)
			if err != nil {
				return nil, fmt.Errorf("key %q: %v", key, err)
			}
			rule.SetValue(v)
			continue
		default:
			return nil, fmt.Errorf("unknown key %q", key)
		}

		for _, v := range values {
			if err := add(v); err != nil {
				return nil, fmt.Errorf("key %q: %v", key, err)
			}
		}
	}

	return rule, nil
}

// stringValues flattens a JSON value that is either a single string or an
// array of strings. Comma-containing scalars are rejected as malformed;
// multi-valued dimensions must use arrays.
func stringValues(raw json.RawMessage) ([]string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if strings.Contains(s, ",") {
			return nil, fmt.Errorf("comma-separated value %q: use a JSON array instead", s)
		}
		return []string{s}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("value must be a string or an array of strings")
	}
	for i, v := range list {
		v = strings.TrimSpace(v)
		if strings.Contains(v, ",") {
			return nil, fmt.Errorf("comma-separated value %q: use separate array elements", v)
		}
		list[i] = v
	}
	return list, nil
}
