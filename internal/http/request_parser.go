package http

import (
	"net/http"
	"net/url"
	"strings"

	"fintrack/internal/api"
	"fintrack/internal/core"
)

// maxFormBytes bounds every form body.
const maxFormBytes = 64 << 10

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// formValue is the sanitized value of key.
func formValue(form url.Values, key string) string {
	return sanitizeInput(form.Get(key))
}

// firstValue returns the first non-empty of keys. Profile and register
// forms accept the legacy capitalized field names too.
func firstValue(form url.Values, keys ...string) string {
	for _, k := range keys {
		if v := formValue(form, k); v != "" {
			return v
		}
	}
	return ""
}

// ParseFormOrFail parses a bounded form body and returns an error response
// on failure.
func ParseFormOrFail(w http.ResponseWriter, r *http.Request) *HTMXResponse {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

func parseLogin(form url.Values) (email, password string) {
	return formValue(form, "email"), form.Get("password")
}

func parseRegister(form url.Values) api.RegisterInput {
	return api.RegisterInput{
		Name:     firstValue(form, "name", "Name"),
		LastName: firstValue(form, "lastName", "LastName"),
		MobileNo: firstValue(form, "mobileNo", "Mobile_No"),
		Email:    firstValue(form, "email", "Email"),
		Password: form.Get("password"),
	}
}

// parseAccountInput reads the account form. A missing or unreadable
// balance is zero; negative balances are allowed for credit and loans.
func parseAccountInput(form url.Values) core.AccountInput {
	in := core.AccountInput{
		Name: formValue(form, "name"),
		Type: core.AccountType(strings.ToLower(formValue(form, "type"))),
	}
	if m, ok := core.ParseMoney(firstValue(form, "balance", "initialbalance")); ok {
		in.Balance = m
	}
	return in
}

func parseCategoryInput(form url.Values) core.CategoryInput {
	t, _ := core.ParseTxType(formValue(form, "type"))
	return core.CategoryInput{Name: formValue(form, "name"), Type: t}
}

// parseProfileUpdate reads the profile form and the password confirmation.
func parseProfileUpdate(form url.Values) (core.ProfileUpdate, string) {
	return core.ProfileUpdate{
		Name:     firstValue(form, "name", "Name"),
		LastName: firstValue(form, "lastName", "LastName"),
		Email:    firstValue(form, "email", "Email"),
		MobileNo: firstValue(form, "mobileNo", "Mobile_No"),
		Password: firstValue(form, "password", "Password"),
	}, form.Get("confirmPassword")
}

// isHTMX reports whether r was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
