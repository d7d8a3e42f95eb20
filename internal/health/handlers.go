package health

import (
	"context"
	"net/http"
	"time"

	"github.com/pakkhtun/biryani-backend/internal/common"
)

// Checker probes a single dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.Label }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// Handler serves liveness and readiness probes.
type Handler struct {
	Checks  []Checker
	Timeout time.Duration
}

// Live always reports ok while the process is up.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready probes every registered dependency and reports per-check results.
// Any failing check yields a 503.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	results := make(map[string]string, len(h.Checks))
	healthy := true
	for _, c := range h.Checks {
		if err := c.Check(ctx); err != nil {
			results[c.Name()] = err.Error()
			healthy = false
			continue
		}
		results[c.Name()] = "ok"
	}
	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	common.JSON(w, status, map[string]any{"status": overall, "checks": results})
}
