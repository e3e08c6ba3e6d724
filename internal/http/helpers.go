package http

import (
	"errors"
	"net/http"
	"net/url"

	"fintrack/internal/api"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

// handleRemote turns a 401 into a logout and logs anything else. It
// reports whether a response was written.
func (s *Server) handleRemote(w http.ResponseWriter, r *http.Request, op string, err error) bool {
	if s.policy.HandleError(w, r, err) {
		return true
	}
	errorType := log.ErrorTypeRemote
	var reqErr *api.RequestError
	if errors.As(err, &reqErr) && reqErr.Kind == api.KindTransport {
		errorType = log.ErrorTypeNetwork
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), "Remote call failed",
		log.FieldOperation, op,
		log.FieldErrorType, errorType,
		log.FieldError, err)
	return false
}

// redirect navigates with HX-Redirect for htmx requests and 303 otherwise.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	session.Redirect(w, r, target)
}

// withQuery appends non-empty values to target.
func withQuery(target string, v url.Values) string {
	if enc := v.Encode(); enc != "" {
		return target + "?" + enc
	}
	return target
}

func transactionsURL(accountID string) string {
	v := url.Values{}
	if accountID != "" {
		v.Set("account", accountID)
	}
	return withQuery("/transactions", v)
}
