// Package proxy implements the enforcing reverse proxy in front of the
// document store. Every request is classified, gated against the stored
// security policy and, where data-security tokens apply, rewritten on the
// way in and filtered on the way out.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/takenaka/sekimori/internal/infrastructure/metrics"
	"github.com/takenaka/sekimori/internal/services"
	"github.com/takenaka/sekimori/internal/services/access"
	"github.com/takenaka/sekimori/internal/services/action"
	"github.com/takenaka/sekimori/internal/services/fieldsec"
	"github.com/takenaka/sekimori/internal/services/policy"
)

// Config wires a Handler.
type Config struct {
	Upstream    *url.URL
	PolicyIndex string
	Strict      bool
	Forward     *ForwardConfig
	Identity    *IdentityConfig
	Policies    *services.PolicyService
	Resolver    HostResolver
	Logger      *slog.Logger
	Collector   *metrics.Collector
	Exporter    *metrics.PrometheusExporter
}

// Handler is the authorization layer itself: an http.Handler that decides,
// rewrites and forwards.
type Handler struct {
	policies    *services.PolicyService
	classifier  *action.Classifier
	decider     *access.Decider
	resolver    HostResolver
	forward     *ForwardConfig
	identity    *IdentityConfig
	policyIndex string
	strict      bool
	proxy       *httputil.ReverseProxy
	log         *slog.Logger
	collector   *metrics.Collector
	exporter    *metrics.PrometheusExporter
}

// responseFilterState carries what the response filter needs from the
// decision phase to the response phase.
type responseFilterState struct {
	tokens []string
}

type responseFilterKey struct{}

// NewHandler creates the enforcing proxy handler.
func NewHandler(cfg *Config) *Handler {
	classifier := action.NewClassifier(action.DefaultVocabulary(), cfg.Strict)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = NewNoResolver()
	}

	h := &Handler{
		policies:    cfg.Policies,
		classifier:  classifier,
		decider:     access.NewDecider(classifier),
		resolver:    resolver,
		forward:     cfg.Forward,
		identity:    cfg.Identity,
		policyIndex: cfg.PolicyIndex,
		strict:      cfg.Strict,
		log:         logger,
		collector:   cfg.Collector,
		exporter:    cfg.Exporter,
	}

	proxy := httputil.NewSingleHostReverseProxy(cfg.Upstream)
	proxy.ModifyResponse = h.modifyResponse
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		h.log.Error("upstream request failed", "error", err, "path", r.URL.Path)
		sendError(w, http.StatusBadGateway, "document store unreachable")
	}
	h.proxy = proxy

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := h.log.With("request_id", requestID, "method", r.Method, "path", r.URL.Path)

	info := ParsePath(r.URL.Path)

	ip, err := ClientAddress(r, h.forward)
	if err != nil {
		log.Error("cannot determine client address", "error", err)
		sendError(w, http.StatusInternalServerError, "cannot determine client address")
		return
	}
	log = log.With("client_ip", ip)

	// The policy index is managed from the local machine only; policy
	// rules never apply to it.
	if len(info.Indices) == 1 && info.Indices[0] == h.policyIndex {
		addr := net.ParseIP(ip)
		if addr == nil || !addr.IsLoopback() {
			log.Warn("remote access to policy index denied")
			sendError(w, http.StatusForbidden, "only allowed from localhost")
			return
		}
		h.proxy.ServeHTTP(w, r)
		return
	}

	for _, cmd := range h.classifier.CommandsUsedAsName(r.URL.Path) {
		log.Warn("index or type name shadows a command", "command", cmd)
	}

	caller, err := IdentityFromRequest(r, h.identity)
	if err != nil {
		log.Warn("identity rejected", "error", err)
		sendError(w, http.StatusForbidden, "invalid identity assertion")
		return
	}

	host := h.resolver.Resolve(r.Context(), ip)

	pctx := &policy.Context{
		ClientIP:   ip,
		ClientHost: host,
		Indices:    info.Indices,
		Types:      info.Types,
	}
	if caller != nil {
		pctx.Caller = caller
	}

	evalStart := time.Now()
	decision, err := h.authorize(r.Context(), pctx, r.URL.Path, r.Method)
	if h.exporter != nil {
		h.exporter.RecordEvalDuration(time.Since(evalStart).Seconds())
	}
	if err != nil {
		h.denyOnError(w, log, err)
		return
	}

	h.recordDecision(decision)

	if !decision.Allowed {
		log.Info("request denied", "action", decision.Action.String(), "level", decision.Level.String(), "reason", decision.Reason)
		sendError(w, http.StatusForbidden, decision.Reason)
		return
	}

	if h.isSearch(r.URL.Path) {
		if !h.restrictSearchRequest(w, r, pctx, log) {
			return
		}
	} else if decision.Tokens != nil && h.classifier.IsWrite(r.URL.Path, r.Method) {
		h.protectWrite(r, info, decision.Tokens, log)
	}

	if decision.Tokens != nil && h.isSearch(r.URL.Path) {
		state := &responseFilterState{tokens: decision.Tokens}
		r = r.WithContext(context.WithValue(r.Context(), responseFilterKey{}, state))
	}

	log.Info("request allowed", "action", decision.Action.String(), "level", decision.Level.String())
	h.proxy.ServeHTTP(w, r)
}

// authorize loads the policy documents and produces the decision.
func (h *Handler) authorize(ctx context.Context, pctx *policy.Context, path, method string) (*access.Decision, error) {
	levelDoc, err := h.policies.LevelPolicy(ctx)
	if err != nil {
		return nil, err
	}
	tokenDoc, err := h.policies.TokenPolicy(ctx)
	if err != nil {
		return nil, err
	}
	return h.decider.Authorize(levelDoc, tokenDoc, pctx, path, method)
}

// denyOnError maps an authorization error to a response. Configuration
// errors and unknown clients both end in a refusal, never a pass-through.
func (h *Handler) denyOnError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case access.IsConfigError(err):
		log.Error("cannot parse security policy", "error", err)
		if h.exporter != nil {
			h.exporter.RecordPolicyError()
		}
		sendError(w, http.StatusInternalServerError, "cannot parse security configuration")
	case errors.Is(err, policy.ErrUnknownClient):
		log.Warn("client has no usable address", "error", err)
		sendError(w, http.StatusForbidden, "unknown client")
	default:
		log.Error("authorization failed", "error", err)
		sendError(w, http.StatusInternalServerError, "authorization failed")
	}
}

func (h *Handler) recordDecision(decision *access.Decision) {
	outcome := "denied"
	if decision.Allowed {
		outcome = "allowed"
	}
	if h.collector != nil {
		h.collector.RecordDecision(decision.Action.String(), outcome)
	}
	if h.exporter != nil {
		h.exporter.RecordDecision(decision.Action.String(), outcome)
	}
}

// isSearch reports whether the request targets a search endpoint.
func (h *Handler) isSearch(path string) bool {
	return strings.Contains(path, "_search") || strings.Contains(path, "_msearch")
}

// restrictSearchRequest rewrites a search body so the store only returns
// the fields the field-response policy grants. Returns false when the
// request was answered and must not be forwarded. Sites without a
// field-response policy get their searches through untouched.
func (h *Handler) restrictSearchRequest(w http.ResponseWriter, r *http.Request, pctx *policy.Context, log *slog.Logger) bool {
	fieldDoc, err := h.policies.FieldPolicy(r.Context())
	if err != nil {
		log.Error("cannot load field policy", "error", err)
		sendError(w, http.StatusInternalServerError, "cannot parse security configuration")
		return false
	}
	if fieldDoc == nil {
		return true
	}

	if r.Method != http.MethodPost {
		sendError(w, http.StatusForbidden, "only search requests with method POST are allowed")
		return false
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		sendError(w, http.StatusBadRequest, "POST content missing")
		return false
	}

	fields, err := policy.EvaluateDocument(fieldDoc, policy.FieldKind(), pctx)
	if err != nil {
		h.denyOnError(w, log, err)
		return false
	}

	restricted, err := fieldsec.RestrictRequestFields(body, fields)
	if err != nil {
		log.Warn("search body rejected", "error", err)
		sendError(w, http.StatusBadRequest, "search request must contain a query")
		return false
	}

	setBody(r, restricted)
	return true
}

// protectWrite strips fields the caller's tokens may not update from the
// incoming document. A document that cannot be loaded is treated as new
// and passes unmodified.
func (h *Handler) protectWrite(r *http.Request, info *PathInfo, tokens []string, log *slog.Logger) {
	if len(info.Indices) == 0 || len(info.Types) == 0 || info.DocumentID == "" {
		return
	}

	perms, err := h.policies.DocumentPermissions(r.Context(), info.Indices[0], info.Types[0], info.DocumentID)
	if err != nil {
		log.Warn("cannot load document permissions", "error", err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		return
	}

	allowed := fieldsec.UpdatableFields(perms, tokens)
	filtered, err := fieldsec.FilterDocument(body, allowed)
	if err != nil {
		log.Warn("cannot filter write body", "error", err)
		setBody(r, body)
		return
	}

	setBody(r, filtered)
}

// modifyResponse filters a search response down to the fields the caller's
// tokens may read. Runs inside the reverse proxy after the upstream
// answered.
func (h *Handler) modifyResponse(resp *http.Response) error {
	state, ok := resp.Request.Context().Value(responseFilterKey{}).(*responseFilterState)
	if !ok || resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading upstream response: %w", err)
	}

	perms, err := fieldsec.ParseStored(body)
	if errors.Is(err, fieldsec.ErrNoPermissions) {
		perms, err = h.policies.DefaultPermissions(resp.Request.Context())
	}
	if err != nil {
		return fmt.Errorf("resolving response permissions: %w", err)
	}

	readable := fieldsec.ReadableFields(perms, state.tokens)
	filtered, err := fieldsec.FilterSearchResponse(body, readable, h.strict)
	if err != nil {
		return fmt.Errorf("filtering search response: %w", err)
	}

	resp.Body = io.NopCloser(bytes.NewReader(filtered))
	resp.ContentLength = int64(len(filtered))
	resp.Header.Set("Content-Length", fmt.Sprintf("%d", len(filtered)))
	return nil
}

func setBody(r *http.Request, body []byte) {
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
}

func sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"status":%d}`, message, status)
}
