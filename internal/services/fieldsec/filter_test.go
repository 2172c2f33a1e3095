package fieldsec

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
)

func mustJSON(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("invalid JSON %s: %v", b, err)
	}
	return m
}

func TestFilterDocument(t *testing.T) {
	doc := []byte(`{
		"name": "alice",
		"email": "alice@example.com",
		"salary": 90000,
		"address": {"street": "Main St", "city": "Springfield", "geo": {"lat": 1, "lon": 2}}
	}`)

	got, err := FilterDocument(doc, []string{"name", "address.city"})
	if err != nil {
		t.Fatalf("FilterDocument: %v", err)
	}

	want := map[string]any{
		"name":    "alice",
		"address": map[string]any{"city": "Springfield"},
	}
	if !reflect.DeepEqual(mustJSON(t, got), want) {
		t.Errorf("filtered = %s, want %v", got, want)
	}
}

func TestFilterDocument_SubtreeAuthorization(t *testing.T) {
	doc := []byte(`{"address": {"street": "Main St", "geo": {"lat": 1}}, "other": 1}`)

	got, err := FilterDocument(doc, []string{"address"})
	if err != nil {
		t.Fatalf("FilterDocument: %v", err)
	}

	want := map[string]any{
		"address": map[string]any{
			"street": "Main St",
			"geo":    map[string]any{"lat": float64(1)},
		},
	}
	if !reflect.DeepEqual(mustJSON(t, got), want) {
		t.Errorf("filtered = %s, want whole address subtree", got)
	}
}

func TestFilterDocument_ArraysAreTransparent(t *testing.T) {
	doc := []byte(`{"contacts": [{"kind": "mail", "value": "a@b"}, {"kind": "phone", "value": "123"}]}`)

	got, err := FilterDocument(doc, []string{"contacts.kind"})
	if err != nil {
		t.Fatalf("FilterDocument: %v", err)
	}

	want := map[string]any{
		"contacts": []any{
			map[string]any{"kind": "mail"},
			map[string]any{"kind": "phone"},
		},
	}
	if !reflect.DeepEqual(mustJSON(t, got), want) {
		t.Errorf("filtered = %s, want kind-only contacts", got)
	}
}

func TestFilterDocument_Wildcard(t *testing.T) {
	doc := []byte(`{"a": 1, "b": {"c": 2}}`)

	got, err := FilterDocument(doc, []string{"*"})
	if err != nil {
		t.Fatalf("FilterDocument: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Errorf("wildcard projection should be the identity, got %s", got)
	}
}

func TestFilterDocument_Idempotent(t *testing.T) {
	doc := []byte(`{"name": "alice", "email": "a@b", "address": {"city": "X", "street": "Y"}}`)
	allowed := []string{"name", "address.city"}

	once, err := FilterDocument(doc, allowed)
	if err != nil {
		t.Fatalf("first filter: %v", err)
	}
	twice, err := FilterDocument(once, allowed)
	if err != nil {
		t.Fatalf("second filter: %v", err)
	}

	if !reflect.DeepEqual(mustJSON(t, once), mustJSON(t, twice)) {
		t.Errorf("second filter lost fields: %s vs %s", once, twice)
	}
}

const searchResponse = `{
	"took": 3,
	"timed_out": false,
	"_shards": {"total": 5, "successful": 5, "failed": 0},
	"hits": {
		"total": 2,
		"max_score": 1.0,
		"hits": [
			{"_index": "staff", "_type": "person", "_id": "1", "_score": 1.0,
			 "_source": {"name": "alice", "email": "a@b", "salary": 90000}},
			{"_index": "staff", "_type": "person", "_id": "2", "_score": 0.8,
			 "_source": {"name": "bob", "email": "b@b", "salary": 80000}}
		]
	},
	"aggregations": {"by_dept": {"buckets": []}}
}`

func TestFilterSearchResponse(t *testing.T) {
	got, err := FilterSearchResponse([]byte(searchResponse), []string{"name", "email"}, false)
	if err != nil {
		t.Fatalf("FilterSearchResponse: %v", err)
	}
	tree := mustJSON(t, got)

	// Framing metadata survives.
	if tree["took"] != float64(3) {
		t.Error("took should be retained")
	}
	hits := tree["hits"].(map[string]any)
	if hits["total"] != float64(2) {
		t.Error("hits.total should be retained")
	}

	docs := hits["hits"].([]any)
	if len(docs) != 2 {
		t.Fatalf("got %d hits, want 2", len(docs))
	}
	first := docs[0].(map[string]any)
	if first["_id"] != "1" || first["_score"] != float64(1.0) {
		t.Error("hit metadata should be retained")
	}
	source := first["_source"].(map[string]any)
	if source["name"] != "alice" || source["email"] != "a@b" {
		t.Errorf("allowed fields missing from source: %v", source)
	}
	if _, leaked := source["salary"]; leaked {
		t.Error("salary must not survive the filter")
	}

	// Lax mode keeps aggregations.
	if _, ok := tree["aggregations"]; !ok {
		t.Error("aggregations should be retained outside strict mode")
	}
}

func TestFilterSearchResponse_StrictDropsAggregations(t *testing.T) {
	got, err := FilterSearchResponse([]byte(searchResponse), []string{"name"}, true)
	if err != nil {
		t.Fatalf("FilterSearchResponse: %v", err)
	}
	if _, ok := mustJSON(t, got)["aggregations"]; ok {
		t.Error("aggregations must be dropped in strict mode")
	}
}

func TestFilterSearchResponse_Wildcard(t *testing.T) {
	got, err := FilterSearchResponse([]byte(searchResponse), []string{"*"}, false)
	if err != nil {
		t.Fatalf("FilterSearchResponse: %v", err)
	}
	docs := mustJSON(t, got)["hits"].(map[string]any)["hits"].([]any)
	source := docs[0].(map[string]any)["_source"].(map[string]any)
	if _, ok := source["salary"]; !ok {
		t.Error("wildcard should keep every source field")
	}
}

func TestRestrictRequestFields(t *testing.T) {
	body := []byte(`{"query": {"match_all": {}}}`)

	got, err := RestrictRequestFields(body, []string{"name", "email"})
	if err != nil {
		t.Fatalf("RestrictRequestFields: %v", err)
	}
	tree := mustJSON(t, got)
	fields, ok := tree["fields"].([]any)
	if !ok || len(fields) != 2 || fields[0] != "name" {
		t.Errorf("fields clause = %v, want [name email]", tree["fields"])
	}
	if _, ok := tree["query"]; !ok {
		t.Error("query must be preserved")
	}
}

func TestRestrictRequestFields_Defaults(t *testing.T) {
	body := []byte(`{"query": {"match_all": {}}}`)

	// Wildcard leaves the request untouched.
	got, err := RestrictRequestFields(body, []string{"*"})
	if err != nil {
		t.Fatalf("RestrictRequestFields: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("wildcard should be a no-op, got %s", got)
	}

	// No fields degrades to the identifier.
	got, err = RestrictRequestFields(body, nil)
	if err != nil {
		t.Fatalf("RestrictRequestFields: %v", err)
	}
	fields := mustJSON(t, got)["fields"].([]any)
	if len(fields) != 1 || fields[0] != "_id" {
		t.Errorf("fields = %v, want [_id]", fields)
	}
}

func TestRestrictRequestFields_RequiresQuery(t *testing.T) {
	if _, err := RestrictRequestFields([]byte(`{"size": 10}`), []string{"name"}); err == nil {
		t.Error("request without query should be rejected")
	}
	if _, err := RestrictRequestFields([]byte(`not json`), []string{"name"}); err == nil {
		t.Error("invalid JSON should be rejected")
	}
}
