package http

import (
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
	"github.com/aussiebroadwan/dormant/internal/dormant/service"
	"github.com/aussiebroadwan/dormant/pkg/httpx"
	"github.com/aussiebroadwan/dormant/pkg/slogx"
)

// ConfirmHandler serves the emailed decision link. A "yes" answer records
// the opt-in and sends the user on to the password-reset form with a fresh
// token; a "no" answer deactivates the account.
type ConfirmHandler struct {
	LifecycleService *service.LifecycleService
}

func (h *ConfirmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	httpx.NoCache(w)

	user := r.URL.Query().Get("user")
	token := r.URL.Query().Get("token")
	answer := r.URL.Query().Get("response")

	decision, ok := domain.ParseDecision(answer)
	if !ok || user == "" || token == "" {
		writeServiceError(w, r, service.ErrMissingParams)
		return
	}

	resetToken, err := h.LifecycleService.Confirm(ctx, user, token, decision)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if decision == domain.DecisionYes {
		q := url.Values{"user": {user}, "token": {resetToken}}
		http.Redirect(w, r, "/reset_password?"+q.Encode(), http.StatusSeeOther)
		return
	}

	log.Info("deactivation confirmed", "user", user)
	renderPage(w, r, http.StatusOK, "message.html", messagePage{
		Title:  "Account deactivated",
		Detail: "Your account has been deactivated. Thank you for letting us know.",
	})
}
