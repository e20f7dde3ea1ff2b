package http

import (
	"net/http"

	"github.com/aussiebroadwan/dormant/internal/dormant/service"
	"github.com/aussiebroadwan/dormant/pkg/httpx"
	"github.com/aussiebroadwan/dormant/pkg/slogx"
)

// DeactivateHandler serves the direct deactivation path. Unless the service
// runs in open mode the request carries the same token the confirm link
// does.
type DeactivateHandler struct {
	LifecycleService *service.LifecycleService
}

func (h *DeactivateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	httpx.NoCache(w)

	user := r.PathValue("username")
	token := r.URL.Query().Get("token")

	if err := h.LifecycleService.Deactivate(ctx, user, token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Info("deactivation served", "user", user)
	renderPage(w, r, http.StatusOK, "message.html", messagePage{
		Title:  "Account deactivated",
		Detail: "The account has been deactivated.",
	})
}
