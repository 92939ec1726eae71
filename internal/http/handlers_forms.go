package http

import (
	"net/http"
	"net/url"

	"finanzas/internal/core"
)

// transactionView is the data of the transaction and income forms.
type transactionView struct {
	IsIncome   bool
	Categories []core.Category
}

func (s *Server) categoryOptions(w http.ResponseWriter, r *http.Request, kind *core.Kind) ([]core.Category, bool) {
	user, _ := currentUser(r.Context())
	cats, err := s.ledger.CategoryOptions(r.Context(), user.ID, kind)
	if err != nil {
		s.serverError(w, r, "Category options failed", err)
		return nil, false
	}
	return cats, true
}

func transactionPage(restrict *core.Kind) (title, action, notice string) {
	if restrict != nil && *restrict == core.Income {
		return "Nuevo ingreso", "/ingreso/nuevo/", "Ingreso guardado."
	}
	return "Nuevo movimiento", "/transaccion/nueva/", "Movimiento guardado."
}

// transactionForm renders the add form. With restrict set only categories of
// that kind are offered.
func (s *Server) transactionForm(restrict *core.Kind) http.Handler {
	title, action, _ := transactionPage(restrict)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := currentUser(r.Context())
		cats, ok := s.categoryOptions(w, r, restrict)
		if !ok {
			return
		}
		f := newForm(url.Values{
			"currency":       {string(core.PEN)},
			"payment_method": {string(core.Yape)},
			"date":           {s.ledger.Today().String()},
		})
		s.render(w, r, http.StatusOK, "transaction_form.html", page{
			Title:  title,
			User:   &user,
			Form:   f,
			Action: action,
			Data:   transactionView{IsIncome: restrict != nil, Categories: cats},
		})
	})
}

func (s *Server) createTransaction(restrict *core.Kind) http.Handler {
	title, action, notice := transactionPage(restrict)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Formulario invalido", http.StatusBadRequest)
			return
		}
		user, _ := currentUser(r.Context())
		f := newForm(r.PostForm)

		t, fe := bindTransaction(r.PostForm)
		if len(fe) == 0 {
			_, err := s.ledger.AddTransaction(r.Context(), user.ID, t, restrict)
			if err == nil {
				s.redirectWithFlash(w, r, "/", notice)
				return
			}
			var ok bool
			if fe, ok = fieldErrors(err); !ok {
				s.serverError(w, r, "Create transaction failed", err)
				return
			}
		}

		cats, ok := s.categoryOptions(w, r, restrict)
		if !ok {
			return
		}
		f.Errors = fe
		s.render(w, r, http.StatusUnprocessableEntity, "transaction_form.html", page{
			Title:  title,
			User:   &user,
			Form:   f,
			Action: action,
			Data:   transactionView{IsIncome: restrict != nil, Categories: cats},
		})
	})
}

func (s *Server) renderSubscriptionForm(w http.ResponseWriter, r *http.Request, status int, f form) {
	user, _ := currentUser(r.Context())
	cats, ok := s.categoryOptions(w, r, nil)
	if !ok {
		return
	}
	s.render(w, r, status, "subscription_form.html", page{
		Title:  "Nueva suscripcion",
		User:   &user,
		Form:   f,
		Action: "/suscripcion/nueva/",
		Data:   cats,
	})
}

func (s *Server) handleSubscriptionForm(w http.ResponseWriter, r *http.Request) {
	s.renderSubscriptionForm(w, r, http.StatusOK, newForm(url.Values{
		"billing_cycle":     {string(core.Monthly)},
		"next_billing_date": {s.ledger.Today().String()},
		"auto_renew":        {"on"},
	}))
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Formulario invalido", http.StatusBadRequest)
		return
	}
	user, _ := currentUser(r.Context())

	sub, fe := bindSubscription(r.PostForm)
	if len(fe) == 0 {
		_, err := s.ledger.AddSubscription(r.Context(), user.ID, sub)
		if err == nil {
			s.redirectWithFlash(w, r, "/", "Suscripcion guardada.")
			return
		}
		var ok bool
		if fe, ok = fieldErrors(err); !ok {
			s.serverError(w, r, "Create subscription failed", err)
			return
		}
	}
	f := newForm(r.PostForm)
	f.Errors = fe
	s.renderSubscriptionForm(w, r, http.StatusUnprocessableEntity, f)
}

func (s *Server) handleCategoryForm(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	s.render(w, r, http.StatusOK, "category_form.html", page{
		Title:  "Nueva categoria",
		User:   &user,
		Action: "/categoria/nueva/",
		Form: newForm(url.Values{
			"kind":  {string(core.Expense)},
			"color": {core.DefaultCategoryColor},
		}),
	})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Formulario invalido", http.StatusBadRequest)
		return
	}
	user, _ := currentUser(r.Context())

	c, fe := bindCategoryForm(r.PostForm)
	if len(fe) == 0 {
		_, err := s.ledger.AddCategory(r.Context(), user.ID, c)
		if err == nil {
			s.redirectWithFlash(w, r, "/", "Categoria creada.")
			return
		}
		var ok bool
		if fe, ok = fieldErrors(err); !ok {
			s.serverError(w, r, "Create category failed", err)
			return
		}
	}
	f := newForm(r.PostForm)
	f.Errors = fe
	s.render(w, r, http.StatusUnprocessableEntity, "category_form.html", page{
		Title:  "Nueva categoria",
		User:   &user,
		Action: "/categoria/nueva/",
		Form:   f,
	})
}
