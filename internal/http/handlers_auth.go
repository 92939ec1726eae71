package http

import (
	"errors"
	"net/http"
	"net/url"

	"finanzas/internal/log"
	"finanzas/internal/services"
)

const msgInvalidLogin = "Introduce un usuario y contrasena correctos. Ambos campos distinguen mayusculas de minusculas."

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	f := newForm(url.Values{"next": {r.URL.Query().Get("next")}})
	s.render(w, r, http.StatusOK, "login.html", page{
		Title: "Iniciar sesion",
		Flash: s.popFlash(w, r),
		Form:  f,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Formulario invalido", http.StatusBadRequest)
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")

	f := newForm(r.PostForm)
	f.Values.Del("password")
	if username == "" {
		f.Errors.Add("username", msgRequired)
	}
	if password == "" {
		f.Errors.Add("password", msgRequired)
	}
	if len(f.Errors) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", page{Title: "Iniciar sesion", Form: f})
		return
	}

	user, err := s.accounts.Authenticate(r.Context(), username, password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		f.Errors.Add("__all__", msgInvalidLogin)
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", page{Title: "Iniciar sesion", Form: f})
		return
	}
	if err != nil {
		s.serverError(w, r, "Login failed", err)
		return
	}

	sess, err := s.accounts.StartSession(r.Context(), user.ID)
	if err != nil {
		s.serverError(w, r, "Start session failed", err)
		return
	}
	s.setSessionCookie(w, sess)
	http.Redirect(w, r, safeNext(r.PostForm.Get("next")), http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.cookieName); err == nil {
		if err := s.accounts.Logout(r.Context(), c.Value); err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).ErrorContext(r.Context(), "Logout failed", log.FieldError, err)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login/", http.StatusSeeOther)
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "signup.html", page{Title: "Crear cuenta"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Formulario invalido", http.StatusBadRequest)
		return
	}
	v := r.PostForm
	reg := services.Registration{
		Username:        sanitizeInput(v.Get("username")),
		Email:           sanitizeInput(v.Get("email")),
		FirstName:       sanitizeInput(v.Get("first_name")),
		LastName:        sanitizeInput(v.Get("last_name")),
		Password:        v.Get("password1"),
		PasswordConfirm: v.Get("password2"),
	}

	user, err := s.accounts.Register(r.Context(), reg)
	if fe, ok := fieldErrors(err); ok {
		f := newForm(v)
		f.Values.Del("password1")
		f.Values.Del("password2")
		f.Errors = fe
		s.render(w, r, http.StatusUnprocessableEntity, "signup.html", page{Title: "Crear cuenta", Form: f})
		return
	}
	if err != nil {
		s.serverError(w, r, "Registration failed", err)
		return
	}

	sess, err := s.accounts.StartSession(r.Context(), user.ID)
	if err != nil {
		s.serverError(w, r, "Start session failed", err)
		return
	}
	s.setSessionCookie(w, sess)
	s.redirectWithFlash(w, r, "/", "Cuenta creada. Bienvenido/a!")
}

// serverError logs err with the request logger and answers 500.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), msg,
		log.FieldPath, r.URL.Path, log.FieldError, err)
	http.Error(w, "Error interno", http.StatusInternalServerError)
}
