package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	"github.com/aussiebroadwan/dormant/pkg/httpx"
)

// ReadyzHandler reports degraded with a 503 when the backing store is not
// reachable or writable.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"store": "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks["store"] = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, healthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
