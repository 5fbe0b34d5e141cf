// Package app exposes the board workspace over HTTP.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"taskboard/api/internal/authpw"
	"taskboard/api/internal/chat"
	"taskboard/api/internal/kanban"
	"taskboard/api/internal/store"
)

// Workspace is the part of kanban.Executor the handlers call.
type Workspace interface {
	Execute(ctx context.Context, actor kanban.Actor, action kanban.Action) kanban.Outcome
	Boards(ctx context.Context, actor kanban.Actor) ([]store.BoardWithRole, error)
	Board(ctx context.Context, actor kanban.Actor, boardID string) (kanban.BoardDetail, error)
	Columns(ctx context.Context, actor kanban.Actor, boardID string) ([]store.Column, error)
	BoardCards(ctx context.Context, actor kanban.Actor, boardID string, filter store.CardFilter) ([]kanban.CardView, error)
	Card(ctx context.Context, actor kanban.Actor, cardID string) (kanban.CardDetail, error)
	Inbox(ctx context.Context, actor kanban.Actor) ([]store.Card, error)
	Tags(ctx context.Context, actor kanban.Actor, boardID string) ([]store.Tag, error)
	Comments(ctx context.Context, actor kanban.Actor, cardID string) ([]store.Comment, error)
	AddComment(ctx context.Context, actor kanban.Actor, cardID, body string) (store.Comment, error)
}

// Accounts covers users and API tokens.
type Accounts interface {
	Ping(ctx context.Context) error
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	UpdateLLMContext(ctx context.Context, userID, llmContext string) error
	CreateAPIToken(ctx context.Context, token store.APIToken) error
	ListAPITokens(ctx context.Context, userID string) ([]store.APIToken, error)
	TouchAPIToken(ctx context.Context, tokenHash string) (store.APIToken, error)
	RevokeAPIToken(ctx context.Context, userID, tokenID string) (bool, error)
}

// Sessions is satisfied by session.RedisStore and by the Postgres store.
type Sessions interface {
	SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupSession(ctx context.Context, tokenHash string) (string, error)
	DeleteSession(ctx context.Context, tokenHash string) error
}

type Passwords interface {
	Register(ctx context.Context, req authpw.RegisterRequest) (store.User, error)
	Login(ctx context.Context, req authpw.LoginRequest) (store.User, error)
}

type Chat interface {
	Run(ctx context.Context, turn chat.Turn) (chat.Result, error)
	History(ctx context.Context, actor kanban.Actor, boardID string) ([]chat.HistoryEntry, error)
}

type CardSearch interface {
	SearchCardIDs(ctx context.Context, text string) ([]string, error)
}

type Deps struct {
	Workspace Workspace
	Accounts  Accounts
	Sessions  Sessions
	Passwords Passwords
	Chat      Chat
	Search    CardSearch
	Logger    *zap.Logger
}

type Settings struct {
	JWTSecret  string
	AccessTTL  time.Duration
	CORSOrigin string
}

type Server struct {
	workspace  Workspace
	accounts   Accounts
	sessions   Sessions
	passwords  Passwords
	chat       Chat
	search     CardSearch
	logger     *zap.Logger
	secret     []byte
	accessTTL  time.Duration
	corsOrigin string
	now        func() time.Time
}

func NewServer(deps Deps, settings Settings) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := settings.AccessTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Server{
		workspace:  deps.Workspace,
		accounts:   deps.Accounts,
		sessions:   deps.Sessions,
		passwords:  deps.Passwords,
		chat:       deps.Chat,
		search:     deps.Search,
		logger:     logger.Named("http"),
		secret:     []byte(settings.JWTSecret),
		accessTTL:  ttl,
		corsOrigin: settings.CORSOrigin,
		now:        time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/logout", s.handleLogout)
			r.Group(func(r chi.Router) {
				r.Use(requireTokenAdmin)
				r.Post("/auth/tokens", s.handleCreateToken)
				r.Get("/auth/tokens", s.handleListTokens)
				r.Delete("/auth/tokens/{tokenID}", s.handleRevokeToken)
			})

			r.Get("/me", s.handleMe)
			r.Put("/me/llm-context", s.handleSetLLMContext)

			r.Post("/boards", s.handleCreateBoard)
			r.Get("/boards", s.handleListBoards)
			r.Route("/boards/{boardID}", func(r chi.Router) {
				r.Get("/", s.handleGetBoard)
				r.Put("/", s.handleUpdateBoard)
				r.Delete("/", s.handleDeleteBoard)
				r.Post("/permissions", s.handleSetPermission)
				r.Delete("/permissions/{userID}", s.handleRemovePermission)
				r.Post("/columns", s.handleCreateColumn)
				r.Get("/columns", s.handleListColumns)
				r.Get("/cards", s.handleListBoardCards)
				r.Post("/tags", s.handleCreateBoardTag)
				r.Get("/tags", s.handleListBoardTags)
				r.Post("/chat", s.handleBoardChat)
				r.Get("/chat/history", s.handleBoardChatHistory)
			})

			r.Put("/columns/{columnID}", s.handleUpdateColumn)
			r.Delete("/columns/{columnID}", s.handleDeleteColumn)
			r.Patch("/columns/{columnID}/move", s.handleMoveColumn)
			r.Post("/columns/{columnID}/cards", s.handleCreateColumnCard)

			r.Post("/cards", s.handleCreateCard)
			r.Route("/cards/{cardID}", func(r chi.Router) {
				r.Get("/", s.handleGetCard)
				r.Put("/", s.handleUpdateCard)
				r.Delete("/", s.handleDeleteCard)
				r.Patch("/move", s.handleMoveCard)
				r.Post("/boards", s.handleAssignCard)
				r.Delete("/boards/{boardID}", s.handleUnassignCard)
				r.Post("/tags/{tagID}", s.handleAddCardTag)
				r.Delete("/tags/{tagID}", s.handleRemoveCardTag)
				r.Get("/comments", s.handleListComments)
				r.Post("/comments", s.handleAddComment)
			})

			r.Post("/tags", s.handleCreateUserTag)
			r.Get("/tags", s.handleListUserTags)
			r.Put("/tags/{tagID}", s.handleUpdateTag)
			r.Delete("/tags/{tagID}", s.handleDeleteTag)

			r.Get("/inbox", s.handleInbox)

			r.Post("/chat", s.handleGlobalChat)
			r.Get("/chat/history", s.handleGlobalChatHistory)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.accounts.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// run executes one action and writes its entity or its error.
func (s *Server) run(w http.ResponseWriter, r *http.Request, action kanban.Action, successStatus int) {
	outcome := s.workspace.Execute(r.Context(), actorFrom(r.Context()), action)
	if !outcome.Success {
		s.fail(w, r, outcome.Err)
		return
	}
	if outcome.Entity == nil {
		writeJSON(w, successStatus, map[string]any{"ok": true, "description": outcome.Description})
		return
	}
	writeJSON(w, successStatus, entityView(outcome.Entity))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = randomRequestID()
		}
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", id)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON object. An empty body leaves target untouched.
func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domainError(http.StatusBadRequest, "INVALID_BODY", fmt.Sprintf("invalid JSON body: %v", err), nil)
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
