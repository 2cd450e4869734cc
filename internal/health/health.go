// Package health serves the liveness and readiness probes of the slidesense
// process.
//
// /healthz always answers 200 while the process can serve HTTP. /readyz
// answers 200 only once the detection session has been built (see
// [Handler.SetReady]) and every registered [Checker] passes. Responses are
// JSON objects with a top-level "status" field ("ok" or "fail") and a
// "checks" map holding the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// readinessCheck is the name of the built-in session readiness entry.
const readinessCheck = "session"

var errNotReady = errors.New("detection session not built yet")

// Checker is a named readiness check. Check returns nil when the dependency
// is healthy.
type Checker struct {
	// Name is a short label (e.g. "history"). It appears as a key in the
	// JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. It is safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
	ready    atomic.Bool
}

// New creates a [Handler] that runs checkers concurrently on each /readyz
// request. The handler starts not ready.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// SetReady marks the detection session as built (or torn down).
func (h *Handler) SetReady(ready bool) { h.ready.Store(ready) }

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when [Handler.Ready] passes.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, ok := h.Ready(r.Context())
	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ok {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Ready runs every [Checker] concurrently, each under a [checkTimeout]
// deadline derived from ctx, and reports per-check results keyed by name
// ("ok" or "fail: <reason>"). The built-in "session" entry fails until
// [Handler.SetReady] is called.
func (h *Handler) Ready(ctx context.Context) (map[string]string, bool) {
	errs := make([]error, len(h.checkers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()
			// Returning nil keeps one failing check from cancelling the rest.
			errs[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	var sessionErr error
	if !h.ready.Load() {
		sessionErr = errNotReady
	}

	checks := make(map[string]string, len(h.checkers)+1)
	ok := true
	for i, name := range append([]string{readinessCheck}, h.names()...) {
		err := sessionErr
		if i > 0 {
			err = errs[i-1]
		}
		if err != nil {
			checks[name] = "fail: " + err.Error()
			ok = false
			continue
		}
		checks[name] = "ok"
	}
	return checks, ok
}

func (h *Handler) names() []string {
	out := make([]string, len(h.checkers))
	for i, c := range h.checkers {
		out[i] = c.Name
	}
	return out
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
