package http

import (
	"net/http"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

const (
	msgPasswordMismatch = "Passwords do not match"
	msgProfileUpdated   = "Profile updated successfully!"
	msgProfileFailed    = "Failed to update profile"
)

type profileView struct {
	Profile core.User
}

// handleProfile shows the freshest profile available: the remote one when
// the fetch succeeds, the cached user otherwise.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	p := pageData{Title: "My Profile", Nav: "profile"}

	profile, err := s.service(w, r).GetProfile(r.Context())
	if err != nil {
		if s.handleRemote(w, r, log.OpRead, err) {
			return
		}
		p.Data = profileView{Profile: sess.CurrentUser()}
	} else {
		sess.MergeUser(profile)
		if err := s.sessions.Update(r.Context(), sess); err != nil {
			s.logger.WarnContext(r.Context(), "Failed to cache profile", log.FieldError, err)
		}
		p.Data = profileView{Profile: sess.CurrentUser()}
	}
	s.render(w, r, http.StatusOK, "profile.html", p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	update, confirm := parseProfileUpdate(r.PostForm)
	sess := session.FromContext(r.Context())
	fail := func(msg string) {
		s.render(w, r, http.StatusUnprocessableEntity, "profile.html", pageData{
			Title: "My Profile",
			Nav:   "profile",
			Error: msg,
			Data: profileView{Profile: core.User{
				Name: update.Name, LastName: update.LastName, Email: update.Email, MobileNo: update.MobileNo,
			}},
		})
	}

	if update.Password != "" && update.Password != confirm {
		fail(msgPasswordMismatch)
		return
	}
	if update.Name == "" || update.Email == "" {
		fail(msgRequiredFields)
		return
	}

	updated, err := s.service(w, r).UpdateProfile(r.Context(), update)
	if err != nil {
		if s.handleRemote(w, r, log.OpUpdate, err) {
			return
		}
		fail(api.Message(err, msgProfileFailed))
		return
	}

	// The submitted fields win over whatever the backend echoed back.
	payload := update.Payload()
	delete(payload, "password")
	sess.MergeUser(updated.Merge(payload))
	if err := s.sessions.Update(r.Context(), sess); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to cache profile", log.FieldError, err)
	}
	s.logger.InfoContext(r.Context(), "Profile updated", log.FieldOperation, log.OpUpdate)

	s.render(w, r, http.StatusOK, "profile.html", pageData{
		Title: "My Profile",
		Nav:   "profile",
		Flash: msgProfileUpdated,
		Data:  profileView{Profile: sess.CurrentUser()},
	})
}

func (s *Server) handleConfirmDeleteProfile(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "confirm.html", pageData{
		Title: "Delete Account",
		Nav:   "profile",
		Data: confirmView{
			Heading: "Delete your account",
			Message: "Are you sure you want to delete your account? This action cannot be undone.",
			Action:  "/profile/delete",
			Cancel:  "/profile",
		},
	})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.service(w, r).DeleteProfile(r.Context()); err != nil {
		if s.handleRemote(w, r, log.OpDelete, err) {
			return
		}
		s.render(w, r, http.StatusOK, "profile.html", pageData{
			Title: "My Profile",
			Nav:   "profile",
			Error: "Failed to delete account: " + api.Message(err, "unknown error"),
			Data:  profileView{Profile: session.FromContext(r.Context()).CurrentUser()},
		})
		return
	}
	s.logger.InfoContext(r.Context(), "Profile deleted", log.FieldOperation, log.OpDelete)
	s.policy.Logout(w, r)
}
