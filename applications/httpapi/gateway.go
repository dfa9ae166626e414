package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/lattice-data/gateway/domain/orchestrator"
	"github.com/lattice-data/gateway/infrastructure/logging"
	"github.com/lattice-data/gateway/pkg/tracing"
)

// GatewayHandler serves every dynamically-configured endpoint: it resolves
// (method, relative path) against the endpoint registry and hands off to
// the orchestrator, rather than a fixed route table.
type GatewayHandler struct {
	Orchestrator *orchestrator.Orchestrator
	PathPrefix   string
	Logger       *logging.Logger
	Tracer       tracing.Tracer
}

// NewGatewayHandler wires a GatewayHandler. pathPrefix is stripped from the
// request path before resolving against the endpoint registry (e.g. "/api").
func NewGatewayHandler(orc *orchestrator.Orchestrator, pathPrefix string, logger *logging.Logger) *GatewayHandler {
	return &GatewayHandler{Orchestrator: orc, PathPrefix: pathPrefix, Logger: logger, Tracer: tracing.NoopTracer}
}

// WithTracer attaches a tracer that wraps every resolved request in a span
// named "gateway.<method>.<path>". Passing nil restores the no-op tracer.
func (h *GatewayHandler) WithTracer(t tracing.Tracer) *GatewayHandler {
	if t == nil {
		t = tracing.NoopTracer
	}
	h.Tracer = t
	return h
}

func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	relativePath := strings.TrimPrefix(r.URL.Path, h.PathPrefix)
	if relativePath == "" {
		relativePath = "/"
	}

	endpoint, failure := h.Orchestrator.Resolve(r.Method, relativePath)
	if failure != nil {
		writeOutcome(w, *failure)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	requestID := requestIDFrom(r)
	w.Header().Set("X-Request-Id", requestID)

	tracer := h.Tracer
	if tracer == nil {
		tracer = tracing.NoopTracer
	}
	ctx, finish := tracer.StartSpan(r.Context(), "gateway."+r.Method+"."+relativePath, map[string]string{
		"http.method":   r.Method,
		"http.path":     relativePath,
		"request.id":    requestID,
	})

	var outcome orchestrator.Outcome
	if r.Method == http.MethodGet || !endpoint.AllowsWrite(r.Method) {
		outcome = h.Orchestrator.ExecuteQuery(ctx, endpoint, body, r.URL.Query())
	} else {
		outcome = h.Orchestrator.ExecuteWrite(ctx, endpoint, r.Method, body, r.URL.Query(), requestID)
	}
	if outcome.Status >= 500 {
		finish(errOutcomeStatus(outcome.Status))
	} else {
		finish(nil)
	}
	writeOutcome(w, outcome)
}

type outcomeError struct{ status int }

func (e outcomeError) Error() string { return "gateway outcome status " + strconv.Itoa(e.status) }

func errOutcomeStatus(status int) error { return outcomeError{status: status} }

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 10<<20))
}

func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Trace-ID"); id != "" {
		return id
	}
	return logging.NewTraceID()
}

func writeOutcome(w http.ResponseWriter, outcome orchestrator.Outcome) {
	writeJSON(w, outcome.Status, outcome.Body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
