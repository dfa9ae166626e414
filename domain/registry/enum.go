package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lattice-data/gateway/infrastructure/logging"
	"github.com/lattice-data/gateway/infrastructure/resilience"
)

// DynamicEnum is an ordered mapping from code to literal.
type DynamicEnum struct {
	Name  string
	Codes []string
	Value map[string]string
}

// Literal resolves a code to its literal value.
func (e DynamicEnum) Literal(code string) (string, bool) {
	v, ok := e.Value[code]
	return v, ok
}

// Literals returns every literal, in code order.
func (e DynamicEnum) Literals() []string {
	out := make([]string, 0, len(e.Codes))
	for _, code := range e.Codes {
		out = append(out, e.Value[code])
	}
	return out
}

// enumSet is an immutable point-in-time view of every loaded enum, keyed by
// name.
type enumSet struct {
	byName map[string]DynamicEnum
}

// Source fetches enum definitions from the external enum service. Only the
// interface is specified here; the HTTP transport is a thin collaborator
// wired at startup.
type Source interface {
	FetchAll(ctx context.Context) (map[string]DynamicEnum, error)
}

// HTTPSource is the default Source: a GET against baseURL returning a JSON
// array of {name, codes: [{code, literal}]} entries. Fetches are wrapped in a
// circuit breaker and a bounded retry so a degraded enum service cannot stall
// every refresh cycle.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
	Breaker *resilience.CircuitBreaker
	Retry   resilience.RetryConfig
}

// NewHTTPSource returns an HTTPSource using http.DefaultClient if client is
// nil.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		BaseURL: baseURL,
		Client:  client,
		Breaker: resilience.New(resilience.DefaultConfig()),
		Retry:   resilience.DefaultRetryConfig(),
	}
}

type wireEnum struct {
	Name  string `json:"name"`
	Codes []struct {
		Code    string `json:"code"`
		Literal string `json:"literal"`
	} `json:"codes"`
}

// FetchAll implements Source. The request is retried with backoff, and a
// circuit breaker trips after repeated failures so a wedged enum service
// fails fast instead of blocking every refresh cycle.
func (s *HTTPSource) FetchAll(ctx context.Context) (map[string]DynamicEnum, error) {
	var out map[string]DynamicEnum
	breaker := s.Breaker
	if breaker == nil {
		breaker = resilience.New(resilience.DefaultConfig())
	}
	err := resilience.Retry(ctx, s.Retry, func() error {
		return breaker.Execute(ctx, func() error {
			fetched, ferr := s.doFetch(ctx)
			if ferr != nil {
				return ferr
			}
			out = fetched
			return nil
		})
	})
	return out, err
}

func (s *HTTPSource) doFetch(ctx context.Context) (map[string]DynamicEnum, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("enum source: build request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enum source: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enum source: unexpected status %d", resp.StatusCode)
	}

	var wire []wireEnum
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("enum source: decode: %w", err)
	}

	out := make(map[string]DynamicEnum, len(wire))
	for _, w := range wire {
		codes := make([]string, 0, len(w.Codes))
		value := make(map[string]string, len(w.Codes))
		for _, c := range w.Codes {
			codes = append(codes, c.Code)
			value[c.Code] = c.Literal
		}
		out[w.Name] = DynamicEnum{Name: w.Name, Codes: codes, Value: value}
	}
	return out, nil
}

// EnumRegistry periodically refreshes every dynamic enum from a Source and
// serves lookups from an immutable snapshot.
type EnumRegistry struct {
	source          Source
	refreshInterval time.Duration
	failOnLoadError bool
	log             *logging.Logger

	active atomic.Pointer[enumSet]

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewEnumRegistry builds a registry that refreshes every refreshInterval
// (default 300s if zero or negative). If failOnLoadError, the first load
// returning an error is fatal to the caller; subsequent refresh failures are
// always logged and retried on the next tick, never crashing the service.
func NewEnumRegistry(source Source, refreshInterval time.Duration, failOnLoadError bool) *EnumRegistry {
	if refreshInterval <= 0 {
		refreshInterval = 300 * time.Second
	}
	r := &EnumRegistry{source: source, refreshInterval: refreshInterval, failOnLoadError: failOnLoadError, log: logging.Default()}
	r.active.Store(&enumSet{byName: map[string]DynamicEnum{}})
	return r
}

// Initialize performs the first synchronous load, then starts the periodic
// refresh loop in the background.
func (r *EnumRegistry) Initialize(ctx context.Context) error {
	if err := r.refresh(ctx); err != nil {
		if r.failOnLoadError {
			return fmt.Errorf("registry: initial enum load: %w", err)
		}
		r.log.WithError(err).Warn("registry: initial enum load failed, continuing with empty set")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.stopped = make(chan struct{})
	r.mu.Unlock()

	go r.loop(loopCtx)
	return nil
}

// Stop terminates the background refresh loop.
func (r *EnumRegistry) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	stopped := r.stopped
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if stopped != nil {
		<-stopped
	}
}

func (r *EnumRegistry) loop(ctx context.Context) {
	defer close(r.stopped)
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil {
				r.log.WithError(err).Warn("registry: enum refresh failed, retaining previous snapshot")
			}
		}
	}
}

func (r *EnumRegistry) refresh(ctx context.Context) error {
	all, err := r.source.FetchAll(ctx)
	if err != nil {
		return err
	}
	r.active.Store(&enumSet{byName: all})
	return nil
}

// Get resolves an enum by name from the currently published snapshot.
func (r *EnumRegistry) Get(name string) (DynamicEnum, bool) {
	set := r.active.Load()
	if set == nil {
		return DynamicEnum{}, false
	}
	e, ok := set.byName[name]
	return e, ok
}
