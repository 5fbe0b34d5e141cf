// Package authpw provides email/password accounts.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/kanban"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

const (
	minPasswordLength = 8
	// bcrypt ignores bytes past 72.
	maxPasswordLength = 72
	maxNameLength     = 100
)

var errInvalidLogin = kanban.Unauthenticatedf("invalid email or password")

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
}

type Service struct {
	store UserStore
	cost  int
	// dummyHash keeps unknown-email logins as slow as wrong-password ones.
	dummyHash []byte
}

func NewService(users UserStore) *Service {
	return newService(users, bcrypt.DefaultCost)
}

func newService(users UserStore, cost int) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return &Service{store: users, cost: cost, dummyHash: dummy}
}

type RegisterRequest struct {
	Email    string
	Name     string
	Password string
}

// Register creates an account. The email is stored lowercased.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return store.User{}, kanban.Validationf("email, name and password are required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return store.User{}, kanban.Validationf("%q is not a valid email address", req.Email)
	}
	name := kanban.CleanLine(req.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return store.User{}, kanban.Validationf("name must be 1 to %d characters", maxNameLength)
	}
	if len(req.Password) < minPasswordLength {
		return store.User{}, kanban.Validationf("password must be at least %d characters", minPasswordLength)
	}
	if len(req.Password) > maxPasswordLength {
		return store.User{}, kanban.Validationf("password must be at most %d bytes", maxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.User{}, kanban.Conflictf("email already registered")
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

type LoginRequest struct {
	Email    string
	Password string
}

// Login checks credentials. Unknown emails and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, req LoginRequest) (store.User, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return store.User{}, kanban.Validationf("email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return store.User{}, errInvalidLogin
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return store.User{}, errInvalidLogin
	}
	return user, nil
}
