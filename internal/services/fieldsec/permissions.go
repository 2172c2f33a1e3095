package fieldsec

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/takenaka/sekimori/internal/entities"
)

// PayloadKey is the document key under which per-field permissions are
// stored, both in dedicated policy documents and inside protected documents
// themselves.
const PayloadKey = "dlspermissions"

// ErrNoPermissions is returned when a document carries no permission
// payload at all. The caller decides whether to fall back to the site
// default document or to fail.
var ErrNoPermissions = errors.New("no field permission payload present")

// ParseStored extracts the field permissions governing a stored document.
// The input is either a single document source or a search response
// wrapping such documents.
//
// A search response with zero hits yields the universal-access sentinel:
// with nothing to protect, granting everything is safe, whereas denying
// would turn an empty result into an outage. This is the only place the
// engine fails open.
func ParseStored(doc []byte) ([]*entities.FieldPermission, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("permission document is not valid JSON")
	}
	root := gjson.ParseBytes(doc)

	// The zero-hit check is structural, against the parsed hit count.
	if total := root.Get("hits.total"); total.Exists() && total.Int() == 0 {
		return []*entities.FieldPermission{entities.AllPermission()}, nil
	}

	if hits := root.Get("hits.hits"); hits.Exists() {
		var perms []*entities.FieldPermission
		var err error
		hits.ForEach(func(_, hit gjson.Result) bool {
			payload := hit.Get("_source." + PayloadKey)
			if !payload.Exists() {
				return true
			}
			var parsed []*entities.FieldPermission
			parsed, err = parsePayload(payload)
			if err != nil {
				return false
			}
			perms = append(perms, parsed...)
			return true
		})
		if err != nil {
			return nil, err
		}
		if len(perms) == 0 {
			return nil, ErrNoPermissions
		}
		return perms, nil
	}

	payload := root.Get(PayloadKey)
	if !payload.Exists() {
		return nil, ErrNoPermissions
	}
	return parsePayload(payload)
}

// ParsePermissionPayload parses a bare permission payload: an object keyed
// by field name, each value holding "read", "update" and "delete" token
// arrays.
func ParsePermissionPayload(payload []byte) ([]*entities.FieldPermission, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("permission payload is not valid JSON")
	}
	return parsePayload(gjson.ParseBytes(payload))
}

func parsePayload(payload gjson.Result) ([]*entities.FieldPermission, error) {
	if !payload.IsObject() {
		return nil, fmt.Errorf("permission payload must be a JSON object keyed by field name")
	}

	var perms []*entities.FieldPermission
	var err error
	payload.ForEach(func(field, spec gjson.Result) bool {
		var perm *entities.FieldPermission
		perm, err = entities.NewFieldPermission(field.String())
		if err != nil {
			return false
		}
		if err = addOpTokens(perm.AddReadTokens, spec.Get("read")); err != nil {
			return false
		}
		if err = addOpTokens(perm.AddUpdateTokens, spec.Get("update")); err != nil {
			return false
		}
		if err = addOpTokens(perm.AddDeleteTokens, spec.Get("delete")); err != nil {
			return false
		}
		perms = append(perms, perm)
		return true
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func addOpTokens(add func(...string) error, tokens gjson.Result) error {
	if !tokens.Exists() {
		return nil
	}
	if !tokens.IsArray() {
		return fmt.Errorf("token list must be a JSON array, got %s", tokens.Type)
	}
	for _, t := range tokens.Array() {
		if err := add(t.String()); err != nil {
			return err
		}
	}
	return nil
}

// ReadableFields returns the field paths whose read-token set intersects
// the caller's tokens (or contains the wildcard).
func ReadableFields(perms []*entities.FieldPermission, tokens []string) []string {
	var fields []string
	for _, p := range perms {
		if p.AnyMayRead(tokens) {
			fields = append(fields, p.Field)
		}
	}
	return fields
}

// UpdatableFields returns the field paths whose update-token set intersects
// the caller's tokens (or contains the wildcard).
func UpdatableFields(perms []*entities.FieldPermission, tokens []string) []string {
	var fields []string
	for _, p := range perms {
		if p.AnyMayUpdate(tokens) {
			fields = append(fields, p.Field)
		}
	}
	return fields
}
