package repositories

import (
	"context"
	"errors"
)

// ErrPolicyNotFound is returned when no policy document exists for the
// requested section and id. Whether that is an error or just "nothing
// configured" depends on the evaluator asking.
var ErrPolicyNotFound = errors.New("policy document not found")

// PolicyRepository fetches policy documents from wherever the site stores
// them. Implementations must return a fresh snapshot on every call: the
// evaluation engine deliberately holds no cache, so that policy updates are
// visible on the very next request.
type PolicyRepository interface {
	// GetPolicy returns the raw policy document stored under the given
	// section ("actionpathfilter", "dlspermissions", ...) and id.
	GetPolicy(ctx context.Context, section, id string) ([]byte, error)

	// GetDocument returns the raw source of a stored document, used by the
	// write filter to look up a document's own permission payload.
	GetDocument(ctx context.Context, index, typ, id string) ([]byte, error)
}
