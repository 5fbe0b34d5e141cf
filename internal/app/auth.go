package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/kanban"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

const apiTokenPrefix = "kbt"

// API token scopes.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

var validScopes = map[string]bool{ScopeRead: true, ScopeWrite: true, ScopeAdmin: true}

// principal is the caller behind a request. Scope is empty for a login
// session; sessionKey is empty for an API token.
type principal struct {
	User       store.User
	Scope      string
	sessionKey string
}

type principalKey struct{}

func principalFrom(ctx context.Context) principal {
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func actorFrom(ctx context.Context) kanban.Actor {
	p := principalFrom(ctx)
	return kanban.Actor{UserID: p.User.ID, Name: p.User.Name, Email: p.User.Email}
}

var errUnauthorized = domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)

func isMissingSession(err error) bool {
	return errors.Is(err, session.ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.fail(w, r, errUnauthorized)
			return
		}

		var p principal
		var err error
		if strings.HasPrefix(token, apiTokenPrefix+"_") {
			p, err = s.principalFromAPIToken(r.Context(), token)
		} else {
			p, err = s.principalFromAccessToken(r.Context(), token)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}

		if p.Scope == ScopeRead && r.Method != http.MethodGet && r.Method != http.MethodHead {
			s.fail(w, r, domainError(http.StatusForbidden, "INSUFFICIENT_SCOPE", "This token is read-only", nil))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func (s *Server) principalFromAPIToken(ctx context.Context, token string) (principal, error) {
	record, err := s.accounts.TouchAPIToken(ctx, auth.HashToken(token))
	if errors.Is(err, sql.ErrNoRows) {
		return principal{}, errUnauthorized
	}
	if err != nil {
		return principal{}, err
	}
	user, err := s.accounts.GetUserByID(ctx, record.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return principal{}, errUnauthorized
	}
	if err != nil {
		return principal{}, err
	}
	return principal{User: user, Scope: record.Scope}, nil
}

func (s *Server) principalFromAccessToken(ctx context.Context, token string) (principal, error) {
	claims, err := auth.ParseToken(s.secret, token)
	if err != nil {
		return principal{}, errUnauthorized
	}
	key := auth.HashToken(claims.ID)
	userID, err := s.sessions.LookupSession(ctx, key)
	if isMissingSession(err) {
		return principal{}, errUnauthorized
	}
	if err != nil {
		return principal{}, err
	}
	if userID != claims.Subject {
		return principal{}, errUnauthorized
	}
	user, err := s.accounts.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return principal{}, errUnauthorized
	}
	if err != nil {
		return principal{}, err
	}
	return principal{User: user, sessionKey: key}, nil
}

// requireTokenAdmin keeps token management to login sessions and admin tokens.
func requireTokenAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r.Context())
		if p.Scope != "" && p.Scope != ScopeAdmin {
			writeError(w, http.StatusForbidden, "INSUFFICIENT_SCOPE", "Token management needs an admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := s.passwords.Register(r.Context(), authpw.RegisterRequest{
		Email:    body.Email,
		Name:     body.Name,
		Password: body.Password,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.startSession(w, r, user, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := s.passwords.Login(r.Context(), authpw.LoginRequest{Email: body.Email, Password: body.Password})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.startSession(w, r, user, http.StatusOK)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user store.User, status int) {
	jti := util.NewID()
	expiresAt := s.now().Add(s.accessTTL)
	token, err := auth.IssueToken(s.secret, user.ID, user.Name, jti, expiresAt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sessions.SaveSession(r.Context(), auth.HashToken(jti), user.ID, expiresAt); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("session started", zap.String("user_id", user.ID))
	writeJSON(w, status, map[string]any{
		"token":      token,
		"expires_at": expiresAt.UTC(),
		"user":       newUserView(user),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if p.sessionKey != "" {
		if err := s.sessions.DeleteSession(r.Context(), p.sessionKey); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUserView(principalFrom(r.Context()).User))
}

const maxLLMContextLength = 4000

func (s *Server) handleSetLLMContext(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LLMContext string `json:"llm_context"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	llmContext := kanban.CleanBody(body.LLMContext)
	if len(llmContext) > maxLLMContextLength {
		s.fail(w, r, kanban.Validationf("llm_context is too long (max %d characters)", maxLLMContextLength))
		return
	}
	user := principalFrom(r.Context()).User
	if err := s.accounts.UpdateLLMContext(r.Context(), user.ID, llmContext); err != nil {
		s.fail(w, r, err)
		return
	}
	user.LLMContext = llmContext
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name          string `json:"name"`
		Scope         string `json:"scope"`
		ExpiresInDays int    `json:"expires_in_days"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	name := kanban.CleanLine(body.Name)
	if name == "" {
		s.fail(w, r, kanban.Validationf("name is required"))
		return
	}
	scope := strings.ToLower(strings.TrimSpace(body.Scope))
	if scope == "" {
		scope = ScopeWrite
	}
	if !validScopes[scope] {
		s.fail(w, r, kanban.Validationf("scope must be read, write or admin"))
		return
	}
	if body.ExpiresInDays < 0 {
		s.fail(w, r, kanban.Validationf("expires_in_days must not be negative"))
		return
	}

	secret := util.NewToken(apiTokenPrefix)
	record := store.APIToken{
		ID:        util.NewID(),
		UserID:    principalFrom(r.Context()).User.ID,
		Name:      name,
		TokenHash: auth.HashToken(secret),
		Scope:     scope,
		CreatedAt: s.now().UTC(),
	}
	if body.ExpiresInDays > 0 {
		expiresAt := s.now().Add(time.Duration(body.ExpiresInDays) * 24 * time.Hour).UTC()
		record.ExpiresAt = &expiresAt
	}
	if err := s.accounts.CreateAPIToken(r.Context(), record); err != nil {
		s.fail(w, r, err)
		return
	}
	view := newTokenView(record)
	view.Token = secret
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.accounts.ListAPITokens(r.Context(), principalFrom(r.Context()).User.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]tokenView, 0, len(tokens))
	for _, token := range tokens {
		views = append(views, newTokenView(token))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")
	if !util.IsUUID(tokenID) {
		s.fail(w, r, kanban.NotFoundf("token not found"))
		return
	}
	revoked, err := s.accounts.RevokeAPIToken(r.Context(), principalFrom(r.Context()).User.ID, tokenID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !revoked {
		s.fail(w, r, kanban.NotFoundf("token not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
