package http

import (
	"net/http"
	"strings"

	"fintrack/internal/api"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

const (
	msgRequiredFields   = "Please fill all required fields"
	msgLoginFailed      = "Login failed. Please check your credentials."
	msgRegisterFailed   = "Registration failed. Please try again."
	msgRegistered       = "Registration successful! Please log in."
	minPasswordLength   = 6
	msgPasswordTooShort = "Password must be at least 6 characters"
)

type authView struct {
	Email    string
	Register api.RegisterInput
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()).Authenticated() {
		redirect(w, r, session.DashboardPath)
		return
	}
	redirect(w, r, session.LoginPath)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	p := pageData{Title: "Login", Nav: "login", Data: authView{}}
	if r.URL.Query().Get("registered") == "1" {
		p.Flash = msgRegistered
	}
	s.render(w, r, http.StatusOK, "login.html", p)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	email, password := parseLogin(r.PostForm)
	fail := func(status int, msg string) {
		s.render(w, r, status, "login.html", pageData{
			Title: "Login", Nav: "login", Error: msg, Data: authView{Email: email},
		})
	}
	if email == "" || password == "" {
		fail(http.StatusUnprocessableEntity, msgRequiredFields)
		return
	}

	res, err := s.service(w, r).Login(r.Context(), email, password)
	if err != nil {
		s.logger.InfoContext(r.Context(), "Login failed",
			log.FieldOperation, log.OpLogin, log.FieldError, err)
		fail(http.StatusUnauthorized, api.Message(err, msgLoginFailed))
		return
	}
	if res.Token == "" {
		fail(http.StatusUnauthorized, firstNonEmpty(res.Message, msgLoginFailed))
		return
	}
	redirect(w, r, session.DashboardPath)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", pageData{Title: "Create Account", Nav: "register", Data: authView{}})
}

// handleRegister signs the user in when the backend issues a token and
// otherwise sends them to login with a confirmation.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	in := parseRegister(r.PostForm)
	fail := func(status int, msg string) {
		in.Password = ""
		s.render(w, r, status, "register.html", pageData{
			Title: "Create Account", Nav: "register", Error: msg, Data: authView{Register: in},
		})
	}
	if in.Name == "" || in.Email == "" || in.Password == "" {
		fail(http.StatusUnprocessableEntity, msgRequiredFields)
		return
	}
	if len(in.Password) < minPasswordLength {
		fail(http.StatusUnprocessableEntity, msgPasswordTooShort)
		return
	}

	res, err := s.service(w, r).Register(r.Context(), in)
	if err != nil {
		s.logger.InfoContext(r.Context(), "Registration failed", log.FieldError, err)
		fail(http.StatusUnprocessableEntity, api.Message(err, msgRegisterFailed))
		return
	}
	if res.Token != "" {
		redirect(w, r, session.DashboardPath)
		return
	}
	redirect(w, r, session.LoginPath+"?registered=1")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logger.InfoContext(r.Context(), "User logged out", log.FieldOperation, log.OpLogout)
	s.policy.Logout(w, r)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
