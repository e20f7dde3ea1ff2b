package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/dormant/internal/dormant/directory"
	"github.com/aussiebroadwan/dormant/internal/dormant/service"
	"github.com/aussiebroadwan/dormant/pkg/slogx"
)

// writeServiceError maps a service error onto an HTML outcome page.
// Conflict outcomes read as information, not failure: the user's earlier
// action already achieved what the replayed link asks for.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	var dirErr *directory.Error
	switch {
	case errors.Is(err, service.ErrMissingParams),
		errors.Is(err, service.ErrPasswordFieldsRequired),
		errors.Is(err, service.ErrPasswordMismatch):
		renderPage(w, r, http.StatusBadRequest, "message.html", messagePage{
			Title:  "Invalid request",
			Detail: err.Error(),
		})

	case errors.Is(err, service.ErrInvalidToken):
		renderPage(w, r, http.StatusForbidden, "message.html", messagePage{
			Title:  "Link not valid",
			Detail: "This link is invalid or has expired. Please use the most recent email you received.",
		})

	case errors.Is(err, service.ErrAlreadyDecided):
		renderPage(w, r, http.StatusConflict, "message.html", messagePage{
			Title:  "Already answered",
			Detail: "A response for this account has already been recorded. No further action is needed.",
		})

	case errors.Is(err, service.ErrAlreadyReset):
		renderPage(w, r, http.StatusConflict, "message.html", messagePage{
			Title:  "Password already reset",
			Detail: "The password for this account has already been reset. If this was not you, contact support.",
		})

	case errors.Is(err, service.ErrNoResetSession):
		renderPage(w, r, http.StatusForbidden, "message.html", messagePage{
			Title:  "Link not valid",
			Detail: "No password reset is pending for this link. Please confirm your account first.",
		})

	case errors.As(err, &dirErr):
		// The raw error may carry command output; only the sanitized
		// form leaves the process boundary.
		log.Error("directory operation failed", "op", dirErr.Op, "user", dirErr.User, "err", dirErr)
		renderPage(w, r, http.StatusBadGateway, "message.html", messagePage{
			Title:  "Something went wrong",
			Detail: dirErr.Sanitized() + ". Please try the link again shortly.",
		})

	default:
		log.Error("request failed", "err", err)
		renderPage(w, r, http.StatusInternalServerError, "message.html", messagePage{
			Title:  "Something went wrong",
			Detail: "An internal error occurred. Please try again later.",
		})
	}
}
