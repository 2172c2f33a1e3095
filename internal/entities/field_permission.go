package entities

import (
	"fmt"
	"strings"
)

// FieldPermission is one data-security statement: the set of tokens allowed
// to read, update, or delete a single document field. The three token sets
// are independent; each may contain the wildcard token.
type FieldPermission struct {
	Field        string
	ReadTokens   []string
	UpdateTokens []string
	DeleteTokens []string
}

// AllPermission returns the universal-access sentinel: field "*" with the
// wildcard token in all three sets. It stands in when no data-security
// policy exists, so absence of policy means unrestricted access rather
// than denial.
func AllPermission() *FieldPermission {
	return &FieldPermission{
		Field:        Wildcard,
		ReadTokens:   []string{Wildcard},
		UpdateTokens: []string{Wildcard},
		DeleteTokens: []string{Wildcard},
	}
}

// NewFieldPermission creates a permission record for the given field path.
func NewFieldPermission(field string) (*FieldPermission, error) {
	field = strings.TrimSpace(field)
	if field == "" || strings.Contains(field, ",") {
		return nil, fmt.Errorf("%q is not a valid field name", field)
	}
	return &FieldPermission{Field: field}, nil
}

// IsDefault reports whether this record is the open-access wildcard field.
func (p *FieldPermission) IsDefault() bool {
	return p.Field == Wildcard
}

// AllowsNone reports whether no token set grants anything.
func (p *FieldPermission) AllowsNone() bool {
	return len(p.ReadTokens) == 0 && len(p.UpdateTokens) == 0 && len(p.DeleteTokens) == 0
}

// AddReadTokens appends tokens to the read set.
func (p *FieldPermission) AddReadTokens(tokens ...string) error {
	return addTokens(&p.ReadTokens, tokens)
}

// AddUpdateTokens appends tokens to the update set.
func (p *FieldPermission) AddUpdateTokens(tokens ...string) error {
	return addTokens(&p.UpdateTokens, tokens)
}

// AddDeleteTokens appends tokens to the delete set.
func (p *FieldPermission) AddDeleteTokens(tokens ...string) error {
	return addTokens(&p.DeleteTokens, tokens)
}

// MayRead reports whether the single token is allowed to read the field.
func (p *FieldPermission) MayRead(token string) bool {
	return tokenAllowed(p.ReadTokens, token)
}

// MayUpdate reports whether the single token is allowed to update the field.
func (p *FieldPermission) MayUpdate(token string) bool {
	return tokenAllowed(p.UpdateTokens, token)
}

// MayDelete reports whether the single token is allowed to delete the field.
func (p *FieldPermission) MayDelete(token string) bool {
	return tokenAllowed(p.DeleteTokens, token)
}

// AnyMayRead reports whether at least one of the caller's tokens is allowed
// to read the field.
func (p *FieldPermission) AnyMayRead(tokens []string) bool {
	return anyTokenAllowed(p.ReadTokens, tokens)
}

// AnyMayUpdate reports whether at least one of the caller's tokens is
// allowed to update the field.
func (p *FieldPermission) AnyMayUpdate(tokens []string) bool {
	return anyTokenAllowed(p.UpdateTokens, tokens)
}

// AnyMayDelete reports whether at least one of the caller's tokens is
// allowed to delete the field.
func (p *FieldPermission) AnyMayDelete(tokens []string) bool {
	return anyTokenAllowed(p.DeleteTokens, tokens)
}

func addTokens(set *[]string, tokens []string) error {
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" || strings.Contains(t, ",") {
			return fmt.Errorf("%q is not a valid data-security token", t)
		}
		*set = append(*set, t)
	}
	return nil
}

func tokenAllowed(set []string, token string) bool {
	for _, t := range set {
		if t == Wildcard || t == token {
			return true
		}
	}
	return false
}

func anyTokenAllowed(set, tokens []string) bool {
	for _, t := range set {
		if t == Wildcard {
			return true
		}
		for _, c := range tokens {
			if t == c {
				return true
			}
		}
	}
	return false
}
