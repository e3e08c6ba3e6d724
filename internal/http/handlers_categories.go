package http

import (
	"net/http"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type categoryFormView struct {
	ID      string
	Editing bool
	Input   core.CategoryInput
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.renderCategories(w, r, "")
}

func (s *Server) renderCategories(w http.ResponseWriter, r *http.Request, errMsg string) {
	p := pageData{Title: "Categories", Nav: "categories", Error: errMsg}
	categories, err := s.service(w, r).GetCategories(r.Context())
	if err != nil {
		if s.handleRemote(w, r, log.OpList, err) {
			return
		}
		p.Error = firstNonEmpty(errMsg, "Failed to fetch categories")
	}
	p.Data = services.GroupCategories(categories)
	s.render(w, r, http.StatusOK, "categories.html", p)
}

func (s *Server) handleCategoryForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view := categoryFormView{ID: id, Editing: id != "", Input: core.CategoryInput{Type: core.Expense}}
	p := pageData{Title: "Create New Category", Nav: "categories"}

	if t, ok := core.ParseTxType(r.URL.Query().Get("type")); ok {
		view.Input.Type = t
	}
	if view.Editing {
		p.Title = "Edit Category"
		c, err := s.service(w, r).GetCategory(r.Context(), id)
		if err != nil {
			if s.handleRemote(w, r, log.OpRead, err) {
				return
			}
			p.Error = "Failed to fetch category details: " + api.Message(err, "unknown error")
		} else {
			view.Input = core.CategoryInput{Name: c.Name, Type: c.Type}
		}
	}
	p.Data = view
	s.render(w, r, http.StatusOK, "category_form.html", p)
}

func (s *Server) handleSaveCategory(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	id := r.PathValue("id")
	in := parseCategoryInput(r.PostForm)
	view := categoryFormView{ID: id, Editing: id != "", Input: in}
	fail := func(status int, msg string) {
		title := "Create New Category"
		if view.Editing {
			title = "Edit Category"
		}
		s.render(w, r, status, "category_form.html", pageData{Title: title, Nav: "categories", Error: msg, Data: view})
	}

	if err := in.Validate(); err != nil {
		fail(http.StatusUnprocessableEntity, msgRequiredFields)
		return
	}

	svc := s.service(w, r)
	var err error
	op := log.OpCreate
	if view.Editing {
		op = log.OpUpdate
		_, err = svc.UpdateCategory(r.Context(), id, in)
	} else {
		_, err = svc.CreateCategory(r.Context(), in)
	}
	if err != nil {
		if s.handleRemote(w, r, op, err) {
			return
		}
		fail(http.StatusUnprocessableEntity, api.Message(err, "Failed to save category"))
		return
	}
	s.logger.InfoContext(r.Context(), "Category saved", log.FieldOperation, op, log.FieldCategoryID, id)
	redirect(w, r, "/categories")
}

func (s *Server) handleConfirmDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name := id
	if c, err := s.service(w, r).GetCategory(r.Context(), id); err == nil {
		name = c.Name
	} else if s.policy.HandleError(w, r, err) {
		return
	}
	s.render(w, r, http.StatusOK, "confirm.html", pageData{
		Title: "Delete Category",
		Nav:   "categories",
		Data: confirmView{
			Heading: "Delete category " + name,
			Message: "Are you sure you want to delete this category?",
			Action:  "/categories/delete/" + id,
			Cancel:  "/categories",
		},
	})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service(w, r).DeleteCategory(r.Context(), id); err != nil {
		if s.handleRemote(w, r, log.OpDelete, err) {
			return
		}
		s.renderCategories(w, r, "Failed to delete category: "+api.Message(err, "unknown error"))
		return
	}
	redirect(w, r, "/categories")
}
