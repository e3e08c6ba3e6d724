package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

const (
	eventTransactionsChanged = "transactions:changed"
	eventNotification        = "show-notification"

	notificationDuration = 3000 // ms
)

// HTMXResponse collects what an htmx request should get back: a status,
// client events for HX-Trigger and an optional fragment.
type HTMXResponse struct {
	status int
	events map[string]any
	header http.Header
	body   []byte
}

func NewHTMXResponse() *HTMXResponse {
	return &HTMXResponse{status: http.StatusOK, events: map[string]any{}, header: http.Header{}}
}

func (b *HTMXResponse) Status(code int) *HTMXResponse {
	b.status = code
	return b
}

// Trigger queues a client event. A second call with the same name replaces
// the payload.
func (b *HTMXResponse) Trigger(name string, payload any) *HTMXResponse {
	b.events[name] = payload
	return b
}

// TriggerTransactionsChanged lets fragments showing accountID refresh.
func (b *HTMXResponse) TriggerTransactionsChanged(accountID string) *HTMXResponse {
	return b.Trigger(eventTransactionsChanged, map[string]string{"accountId": accountID})
}

func (b *HTMXResponse) TriggerSuccessNotification(message string) *HTMXResponse {
	return b.Trigger(eventNotification, map[string]any{
		"type":     "success",
		"message":  message,
		"duration": notificationDuration,
	})
}

// Redirect makes htmx do a full navigation to target instead of a swap.
func (b *HTMXResponse) Redirect(target string) *HTMXResponse {
	b.header.Set("HX-Redirect", target)
	return b
}

// Fragment sets an already escaped HTML body.
func (b *HTMXResponse) Fragment(html template.HTML) *HTMXResponse {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(html)
	return b
}

func (b *HTMXResponse) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.events) > 0 {
		if raw, err := json.Marshal(b.events); err == nil {
			h.Set("HX-Trigger", string(raw))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message as an inline alert for the hx-target.
func ErrorResponse(status int, message string) *HTMXResponse {
	return NewHTMXResponse().
		Status(status).
		Fragment(template.HTML(`<div class="alert alert-error" role="alert">` + template.HTMLEscapeString(message) + `</div>`))
}

func BadRequestError(message string) *HTMXResponse {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponse {
	return ErrorResponse(http.StatusInternalServerError, message)
}
