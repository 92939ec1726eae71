package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoSession          = errors.New("no active session")

	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}.@+_-]+$`)
)

const (
	minPasswordLen = 8
	// bcrypt rejects longer inputs.
	maxPasswordBytes = 72
)

// Registration is the signup form.
type Registration struct {
	Username        string
	Email           string
	FirstName       string
	LastName        string
	Password        string
	PasswordConfirm string
}

// Session is an authenticated browser session. Token is only ever handed to
// the client; the store keeps its hash.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// AccountService handles signup, login and sessions.
type AccountService struct {
	store    AccountStore
	resolver *CategoryResolver
	ttl      time.Duration
	cost     int
	clock    func() time.Time
	logger   *log.Logger
}

type AccountOption func(*AccountService)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) AccountOption {
	return func(s *AccountService) { s.cost = cost }
}

func NewAccountService(store AccountStore, resolver *CategoryResolver, ttl time.Duration, logger *log.Logger, opts ...AccountOption) *AccountService {
	if logger == nil {
		logger = log.Discard()
	}
	s := &AccountService{
		store:    store,
		resolver: resolver,
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		clock:    time.Now,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (r Registration) validate() core.FieldErrors {
	fe := core.FieldErrors{}
	switch username := strings.TrimSpace(r.Username); {
	case username == "":
		fe.Add("username", "Este campo es obligatorio.")
	case utf8.RuneCountInString(username) > core.MaxUsernameLen:
		fe.Add("username", fmt.Sprintf("Asegurate de que tenga como maximo %d caracteres.", core.MaxUsernameLen))
	case !usernamePattern.MatchString(username):
		fe.Add("username", "Solo letras, numeros y los caracteres @/./+/-/_.")
	}

	if email := strings.TrimSpace(r.Email); email == "" {
		fe.Add("email", "Este campo es obligatorio.")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fe.Add("email", "Introduce una direccion de correo valida.")
	}

	if r.Password == "" {
		fe.Add("password1", "Este campo es obligatorio.")
	} else if utf8.RuneCountInString(r.Password) < minPasswordLen {
		fe.Add("password1", fmt.Sprintf("La contrasena debe tener al menos %d caracteres.", minPasswordLen))
	} else if len(r.Password) > maxPasswordBytes {
		fe.Add("password1", fmt.Sprintf("La contrasena no puede superar los %d bytes.", maxPasswordBytes))
	}
	if r.PasswordConfirm == "" {
		fe.Add("password2", "Este campo es obligatorio.")
	} else if r.Password != r.PasswordConfirm {
		fe.Add("password2", "Los dos campos de contrasena no coinciden.")
	}
	return fe
}

// Register creates the account and provisions its default categories.
func (s *AccountService) Register(ctx context.Context, reg Registration) (core.User, error) {
	fe := reg.validate()
	username := strings.TrimSpace(reg.Username)
	email := strings.TrimSpace(reg.Email)

	if _, ok := fe["username"]; !ok {
		if _, err := s.store.UserByUsername(ctx, username); err == nil {
			fe.Add("username", "Ya existe un usuario con este nombre.")
		} else if !errors.Is(err, storage.ErrNotFound) {
			return core.User{}, err
		}
	}
	if _, ok := fe["email"]; !ok {
		if _, err := s.store.UserByEmail(ctx, email); err == nil {
			fe.Add("email", "Ya existe un usuario con este correo.")
		} else if !errors.Is(err, storage.ErrNotFound) {
			return core.User{}, err
		}
	}
	if err := fe.Err(); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, core.User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		PasswordHash: string(hash),
	})
	if errors.Is(err, storage.ErrEmailTaken) {
		return core.User{}, core.FieldErrors{"email": "Ya existe un usuario con este correo."}
	}
	if errors.Is(err, storage.ErrDuplicate) {
		return core.User{}, core.FieldErrors{"username": "Ya existe un usuario con este nombre."}
	}
	if err != nil {
		return core.User{}, err
	}

	if err := s.resolver.EnsureDefaults(ctx, user.ID); err != nil {
		return core.User{}, err
	}

	s.logger.InfoContext(ctx, "User registered",
		log.FieldOperation, log.OpRegister, log.FieldUserID, user.ID, log.FieldUsername, user.Username)
	return user, nil
}

// Authenticate checks a username and password pair.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	user, err := s.store.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Failed login", log.FieldOperation, log.OpLogin, log.FieldUsername, user.Username)
		return core.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// StartSession issues a new session for userID.
func (s *AccountService) StartSession(ctx context.Context, userID int64) (Session, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return Session{}, fmt.Errorf("generate session token: %w", err)
	}
	sess := Session{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		ExpiresAt: s.clock().Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, hashToken(sess.Token), userID, sess.ExpiresAt); err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "Session started", log.FieldOperation, log.OpLogin, log.FieldUserID, userID)
	return sess, nil
}

// UserForSession returns the user behind an unexpired session token.
func (s *AccountService) UserForSession(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, ErrNoSession
	}
	user, err := s.store.SessionUser(ctx, hashToken(token), s.clock())
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, ErrNoSession
	}
	if err != nil {
		return core.User{}, err
	}
	return user, nil
}

// Logout ends the session; unknown tokens are ignored.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, hashToken(token)); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Session ended", log.FieldOperation, log.OpLogout)
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
