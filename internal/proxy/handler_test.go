package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/takenaka/sekimori/internal/infrastructure/metrics"
	"github.com/takenaka/sekimori/internal/repositories"
	"github.com/takenaka/sekimori/internal/services"
)

// fakeRepo serves policy documents from memory, keyed "section/id" for
// policies and "index/type/id" for documents.
type fakeRepo struct {
	policies  map[string][]byte
	documents map[string][]byte
}

func (f *fakeRepo) GetPolicy(_ context.Context, section, id string) ([]byte, error) {
	doc, ok := f.policies[section+"/"+id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", repositories.ErrPolicyNotFound, section, id)
	}
	return doc, nil
}

func (f *fakeRepo) GetDocument(_ context.Context, index, typ, id string) ([]byte, error) {
	doc, ok := f.documents[index+"/"+typ+"/"+id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s/%s", repositories.ErrPolicyNotFound, index, typ, id)
	}
	return doc, nil
}

// levelPolicy grants everything by default and READONLY to one address.
const levelPolicy = `[
	{"hosts": "*", "permission": "ALL"},
	{"hosts": "198.51.100.77", "permission": "READONLY"}
]`

// tokenPolicy hands out "public" everywhere and "hr" to one address.
const tokenPolicy = `[
	{"hosts": "*", "dlstoken": ["public"]},
	{"hosts": "198.51.100.88", "dlstoken": ["public", "hr"]}
]`

func newTestRepo() *fakeRepo {
	return &fakeRepo{
		policies: map[string][]byte{
			"actionpathfilter/actionpathfilter": []byte(levelPolicy),
			"dlspermissions/dlspermissions":     []byte(tokenPolicy),
		},
		documents: map[string][]byte{},
	}
}

type upstreamCall struct {
	method string
	path   string
	body   string
}

// newUpstream returns a test server answering with response and a pointer
// to the last request it saw.
func newUpstream(t *testing.T, response string) (*httptest.Server, *upstreamCall) {
	t.Helper()
	last := &upstreamCall{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		last.method = r.Method
		last.path = r.URL.Path
		last.body = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	t.Cleanup(ts.Close)
	return ts, last
}

func newTestHandler(t *testing.T, repo *fakeRepo, upstream *httptest.Server, collector *metrics.Collector) *Handler {
	t.Helper()
	u, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("parsing upstream URL: %v", err)
	}
	return NewHandler(&Config{
		Upstream:    u,
		PolicyIndex: "securityconfiguration",
		Policies:    services.NewPolicyService(repo),
		Collector:   collector,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func doRequest(h *Handler, method, path, ip, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, "http://proxy"+path, reader)
	r.RemoteAddr = ip + ":51234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandler_AllowsRead(t *testing.T) {
	upstream, last := newUpstream(t, `{"name": "alice"}`)
	h := newTestHandler(t, newTestRepo(), upstream, nil)

	w := doRequest(h, http.MethodGet, "/staff/person/1", "203.0.113.5", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if last.path != "/staff/person/1" {
		t.Errorf("upstream path = %q", last.path)
	}
	if !strings.Contains(w.Body.String(), "alice") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandler_DeniesWriteForReadonlyClient(t *testing.T) {
	upstream, last := newUpstream(t, `{}`)
	collector := metrics.NewCollector()
	h := newTestHandler(t, newTestRepo(), upstream, collector)

	w := doRequest(h, http.MethodPut, "/staff/person/1", "198.51.100.77", `{"name": "x"}`)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no permission (for write actions)") {
		t.Errorf("body = %s", w.Body.String())
	}
	if last.method != "" {
		t.Error("denied request must not reach the upstream")
	}
	if counts := collector.GetDecisionCounts(); counts["write/denied"] != 1 {
		t.Errorf("decision counts = %v", counts)
	}
}

func TestHandler_ReadonlyClientMayRead(t *testing.T) {
	upstream, _ := newUpstream(t, `{"name": "alice"}`)
	h := newTestHandler(t, newTestRepo(), upstream, nil)

	w := doRequest(h, http.MethodGet, "/staff/person/1", "198.51.100.77", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestHandler_PolicyIndexLocalhostOnly(t *testing.T) {
	upstream, last := newUpstream(t, `{}`)
	h := newTestHandler(t, newTestRepo(), upstream, nil)

	w := doRequest(h, http.MethodGet, "/securityconfiguration/actionpathfilter/actionpathfilter", "203.0.113.5", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for remote access", w.Code)
	}
	if !strings.Contains(w.Body.String(), "only allowed from localhost") {
		t.Errorf("body = %s", w.Body.String())
	}
	if last.method != "" {
		t.Error("remote policy index access must not reach the upstream")
	}

	w = doRequest(h, http.MethodGet, "/securityconfiguration/actionpathfilter/actionpathfilter", "127.0.0.1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for localhost", w.Code)
	}
	if last.path != "/securityconfiguration/actionpathfilter/actionpathfilter" {
		t.Errorf("upstream path = %q", last.path)
	}
}

func TestHandler_MalformedPolicyDenies(t *testing.T) {
	upstream, last := newUpstream(t, `{}`)
	repo := newTestRepo()
	repo.policies["actionpathfilter/actionpathfilter"] = []byte(`[{"hosts": "*", "permission": "SUPER"}]`)
	h := newTestHandler(t, repo, upstream, nil)

	w := doRequest(h, http.MethodGet, "/staff/person/1", "203.0.113.5", "")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cannot parse security configuration") {
		t.Errorf("body = %s", w.Body.String())
	}
	if last.method != "" {
		t.Error("request with broken policy must not reach the upstream")
	}
}

const searchResponse = `{
	"took": 3,
	"timed_out": false,
	"_shards": {"total": 1, "successful": 1, "failed": 0},
	"hits": {
		"total": 1,
		"max_score": 1.0,
		"hits": [
			{
				"_index": "staff",
				"_type": "person",
				"_id": "1",
				"_score": 1.0,
				"_source": {
					"name": "alice",
					"salary": 100000,
					"dlspermissions": {
						"name": {"read": ["*"]},
						"salary": {"read": ["finance"]}
					}
				}
			}
		]
	}
}`

func TestHandler_SearchResponseFiltered(t *testing.T) {
	upstream, _ := newUpstream(t, searchResponse)
	h := newTestHandler(t, newTestRepo(), upstream, nil)

	w := doRequest(h, http.MethodGet, "/staff/person/_search", "203.0.113.5", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "alice") {
		t.Errorf("readable field missing from body: %s", body)
	}
	if strings.Contains(body, "100000") {
		t.Errorf("unreadable field leaked: %s", body)
	}
	if strings.Contains(body, "dlspermissions") {
		t.Errorf("permission payload leaked: %s", body)
	}
	if !strings.Contains(body, `"total":1`) {
		t.Errorf("result framing lost: %s", body)
	}
}

func TestHandler_SearchRequestRestricted(t *testing.T) {
	upstream, last := newUpstream(t, searchResponse)
	repo := newTestRepo()
	repo.policies["fieldresponsefilter/fieldresponsefilter"] = []byte(`[
		{"hosts": "*", "fields": ["name", "_id"]}
	]`)
	h := newTestHandler(t, repo, upstream, nil)

	// GET searches are refused once a field policy exists.
	w := doRequest(h, http.MethodGet, "/staff/person/_search", "203.0.113.5", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for GET search", w.Code)
	}

	// A body-less POST is refused.
	w = doRequest(h, http.MethodPost, "/staff/person/_search", "203.0.113.5", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for empty POST", w.Code)
	}

	// A proper search gets the allow-list injected.
	w = doRequest(h, http.MethodPost, "/staff/person/_search", "203.0.113.5", `{"query": {"match_all": {}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(last.body, `"fields"`) || !strings.Contains(last.body, `"name"`) {
		t.Errorf("upstream body = %s, want injected fields clause", last.body)
	}
	if !strings.Contains(last.body, "match_all") {
		t.Errorf("upstream body = %s, query lost", last.body)
	}
}

func TestHandler_WriteBodyProtected(t *testing.T) {
	upstream, last := newUpstream(t, `{"result": "updated"}`)
	repo := newTestRepo()
	repo.documents["staff/person/1"] = []byte(`{
		"dlspermissions": {
			"email": {"read": ["hr"], "update": ["hr"]},
			"name": {"update": ["*"]}
		}
	}`)
	h := newTestHandler(t, repo, upstream, nil)

	w := doRequest(h, http.MethodPut, "/staff/person/1", "198.51.100.88",
		`{"email": "a@example.com", "name": "alice", "secret": "x"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(last.body, "a@example.com") || !strings.Contains(last.body, "alice") {
		t.Errorf("upstream body = %s, updatable fields lost", last.body)
	}
	if strings.Contains(last.body, "secret") {
		t.Errorf("upstream body = %s, unpermitted field leaked", last.body)
	}
}

func TestHandler_WriteToUnknownDocumentPassesThrough(t *testing.T) {
	upstream, last := newUpstream(t, `{"result": "created"}`)
	h := newTestHandler(t, newTestRepo(), upstream, nil)

	w := doRequest(h, http.MethodPut, "/staff/person/9", "198.51.100.88", `{"name": "new"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(last.body, "new") {
		t.Errorf("upstream body = %s", last.body)
	}
}
