package fieldsec

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/takenaka/sekimori/internal/entities"
)

// hitMetadata are the per-hit framing keys every caller may see: they
// identify and rank the document but carry no document data.
var hitMetadata = []string{"_index", "_type", "_id", "_score", "_version", "sort"}

// responseMetadata are the top-level framing keys of a search response.
var responseMetadata = []string{"took", "timed_out", "_shards"}

// FilterDocument projects a JSON document down to the allow-listed field
// paths (dotted notation), preserving value types and nesting. A field path
// authorizes its whole subtree; the wildcard authorizes everything. The
// projection is idempotent: filtering a filtered document with the same
// allow-list is a no-op.
func FilterDocument(doc []byte, allowed []string) ([]byte, error) {
	if slices.Contains(allowed, entities.Wildcard) {
		return doc, nil
	}

	var tree map[string]any
	if err := json.Unmarshal(doc, &tree); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}

	return json.Marshal(filterMap(tree, "", allowed))
}

// FilterSearchResponse rewrites an outbound search response: result-framing
// metadata is always retained, each hit's _source is projected to the
// allow-list, and aggregation/suggestion blocks survive only when the site
// is not in strict mode.
func FilterSearchResponse(body []byte, allowed []string, strict bool) ([]byte, error) {
	var tree map[string]any
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}

	out := make(map[string]any)
	for _, key := range responseMetadata {
		if v, ok := tree[key]; ok {
			out[key] = v
		}
	}
	if !strict {
		for _, key := range []string{"aggregations", "suggest"} {
			if v, ok := tree[key]; ok {
				out[key] = v
			}
		}
	}

	hits, ok := tree["hits"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response has no hits object")
	}

	outHits := make(map[string]any)
	for _, key := range []string{"total", "max_score"} {
		if v, ok := hits[key]; ok {
			outHits[key] = v
		}
	}

	wildcard := slices.Contains(allowed, entities.Wildcard)
	var outDocs []any
	if docs, ok := hits["hits"].([]any); ok {
		outDocs = make([]any, 0, len(docs))
		for _, d := range docs {
			hit, ok := d.(map[string]any)
			if !ok {
				continue
			}
			outHit := make(map[string]any)
			for _, key := range hitMetadata {
				if v, ok := hit[key]; ok {
					outHit[key] = v
				}
			}
			if source, ok := hit["_source"].(map[string]any); ok {
				if wildcard {
					outHit["_source"] = source
				} else {
					outHit["_source"] = filterMap(source, "", allowed)
				}
			}
			outDocs = append(outDocs, outHit)
		}
	}
	outHits["hits"] = outDocs
	out["hits"] = outHits

	return json.Marshal(out)
}

// RestrictRequestFields injects a "fields" allow-list clause into an inbound
// search request, restricting which stored fields the store may return. An
// empty allow-list degrades to the identifier only; a bare wildcard leaves
// the request untouched.
func RestrictRequestFields(body []byte, fields []string) ([]byte, error) {
	if len(fields) == 1 && fields[0] == entities.Wildcard {
		return body, nil
	}
	if len(fields) == 0 {
		fields = []string{"_id"}
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("search request is not valid JSON")
	}
	if !gjson.GetBytes(body, "query").Exists() {
		return nil, fmt.Errorf("search request has no query")
	}

	return sjson.SetBytes(body, "fields", fields)
}

// filterMap keeps the entries of m reachable via the allow-list. Arrays are
// transparent: a path addresses the fields of every element.
func filterMap(m map[string]any, prefix string, allowed []string) map[string]any {
	out := make(map[string]any)
	for key, value := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch {
		case pathAllowed(path, allowed):
			out[key] = value
		case mayDescend(path, allowed):
			switch child := value.(type) {
			case map[string]any:
				if sub := filterMap(child, path, allowed); len(sub) > 0 {
					out[key] = sub
				}
			case []any:
				if sub := filterSlice(child, path, allowed); len(sub) > 0 {
					out[key] = sub
				}
			}
		}
	}
	return out
}

func filterSlice(s []any, prefix string, allowed []string) []any {
	var out []any
	for _, elem := range s {
		if child, ok := elem.(map[string]any); ok {
			if sub := filterMap(child, prefix, allowed); len(sub) > 0 {
				out = append(out, sub)
			}
		}
	}
	return out
}

// pathAllowed reports whether path or one of its ancestors is allow-listed.
func pathAllowed(path string, allowed []string) bool {
	for _, a := range allowed {
		if a == entities.Wildcard || a == path || strings.HasPrefix(path, a+".") {
			return true
		}
	}
	return false
}

// mayDescend reports whether some allow-listed path lies below this one.
func mayDescend(path string, allowed []string) bool {
	for _, a := range allowed {
		if strings.HasPrefix(a, path+".") {
			return true
		}
	}
	return false
}
