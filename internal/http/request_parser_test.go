package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b\x07c", "abc"},
		{"line1\nline2", "line1\nline2"},
		{"tab\there", "tab\there"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseAccountInput(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want core.AccountInput
	}{
		{
			name: "full",
			form: url.Values{"name": {" Wallet "}, "type": {"Cash"}, "balance": {"120.50"}},
			want: core.AccountInput{Name: "Wallet", Type: core.AccountCash, Balance: core.Money{Cents: 12050}},
		},
		{
			name: "missing balance defaults to zero",
			form: url.Values{"name": {"Card"}, "type": {"credit"}},
			want: core.AccountInput{Name: "Card", Type: core.AccountCredit},
		},
		{
			name: "unreadable balance defaults to zero",
			form: url.Values{"name": {"Card"}, "type": {"credit"}, "balance": {"abc"}},
			want: core.AccountInput{Name: "Card", Type: core.AccountCredit},
		},
		{
			name: "legacy field and negative balance",
			form: url.Values{"name": {"Loan"}, "type": {"loan"}, "initialbalance": {"-300"}},
			want: core.AccountInput{Name: "Loan", Type: core.AccountLoan, Balance: core.Money{Cents: -30000}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseAccountInput(tt.form); got != tt.want {
				t.Errorf("parseAccountInput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseCategoryInput(t *testing.T) {
	got := parseCategoryInput(url.Values{"name": {"Rent"}, "type": {"EXPENSE"}})
	if got.Name != "Rent" || got.Type != core.Expense {
		t.Errorf("parseCategoryInput() = %+v", got)
	}
	if got := parseCategoryInput(url.Values{"name": {"X"}, "type": {"other"}}); got.Validate() == nil {
		t.Error("unknown type should fail validation")
	}
}

func TestParseProfileUpdateAcceptsLegacyNames(t *testing.T) {
	p, confirm := parseProfileUpdate(url.Values{
		"Name":            {"Ann"},
		"lastName":        {"Lee"},
		"Email":           {"a@b.com"},
		"Mobile_No":       {"555"},
		"password":        {"pw"},
		"confirmPassword": {"pw"},
	})
	want := core.ProfileUpdate{Name: "Ann", LastName: "Lee", Email: "a@b.com", MobileNo: "555", Password: "pw"}
	if p != want {
		t.Errorf("parseProfileUpdate() = %+v, want %+v", p, want)
	}
	if confirm != "pw" {
		t.Errorf("confirm = %q", confirm)
	}
}

func TestParseFormOrFailRejectsOversizedBody(t *testing.T) {
	body := "description=" + strings.Repeat("x", maxFormBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/transactions/new", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	resp := ParseFormOrFail(w, req)
	if resp == nil {
		t.Fatal("expected an error response for an oversized body")
	}
	resp.Write(w)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestParseFormOrFailAcceptsForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.com&password=secret"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if resp := ParseFormOrFail(httptest.NewRecorder(), req); resp != nil {
		t.Fatal("unexpected error response")
	}
	email, password := parseLogin(req.PostForm)
	if email != "a@b.com" || password != "secret" {
		t.Errorf("parseLogin() = %q, %q", email, password)
	}
}
