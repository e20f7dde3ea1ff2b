package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/dormant/internal/dormant/service"
	"github.com/aussiebroadwan/dormant/pkg/httpx"
	"github.com/aussiebroadwan/dormant/pkg/slogx"
)

// ResetPasswordHandler serves the single-use password-reset gate. GET
// renders the form only after the session and token check out; POST applies
// the reset. Validation mistakes re-render the form so the link stays
// usable; a completed reset is terminal.
type ResetPasswordHandler struct {
	ResetService *service.ResetService
}

func (h *ResetPasswordHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	httpx.NoCache(w)

	user := r.URL.Query().Get("user")
	token := r.URL.Query().Get("token")

	if _, err := h.ResetService.Form(r.Context(), user, token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	renderPage(w, r, http.StatusOK, "reset_form.html", resetFormPage{
		User:  user,
		Token: token,
	})
}

func (h *ResetPasswordHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	httpx.NoCache(w)

	if err := r.ParseForm(); err != nil {
		writeServiceError(w, r, service.ErrMissingParams)
		return
	}

	user := r.PostFormValue("user")
	token := r.PostFormValue("token")
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("password_confirm")

	err := h.ResetService.Complete(ctx, user, token, password, confirm)
	if err == nil {
		log.Info("password reset served", "user", user)
		renderPage(w, r, http.StatusOK, "message.html", messagePage{
			Title:  "Password reset",
			Detail: "Your password has been reset. You can now sign in with your new password.",
		})
		return
	}

	// Field mistakes keep the form on screen with the error inline.
	if errors.Is(err, service.ErrPasswordFieldsRequired) || errors.Is(err, service.ErrPasswordMismatch) {
		renderPage(w, r, http.StatusBadRequest, "reset_form.html", resetFormPage{
			User:  user,
			Token: token,
			Error: err.Error(),
		})
		return
	}

	writeServiceError(w, r, err)
}
