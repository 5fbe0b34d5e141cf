package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/chat"
	"taskboard/api/internal/kanban"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

const (
	testSecret = "test-secret"
	roadmapID  = "6f1c2a3e-0000-4000-8000-000000000001"
	cardID     = "6f1c2a3e-0000-4000-8000-0000000000c1"
	columnID   = "6f1c2a3e-0000-4000-8000-0000000000d1"
	tagID      = "6f1c2a3e-0000-4000-8000-0000000000e1"
)

var ada = store.User{ID: "6f1c2a3e-0000-4000-8000-0000000000a1", Email: "ada@example.com", Name: "Ada", LLMContext: "I manage the roadmap."}

type fakeWorkspace struct {
	executeFn    func(context.Context, kanban.Actor, kanban.Action) kanban.Outcome
	boardsFn     func(context.Context, kanban.Actor) ([]store.BoardWithRole, error)
	boardFn      func(context.Context, kanban.Actor, string) (kanban.BoardDetail, error)
	boardCardsFn func(context.Context, kanban.Actor, string, store.CardFilter) ([]kanban.CardView, error)
	cardFn       func(context.Context, kanban.Actor, string) (kanban.CardDetail, error)

	executed []kanban.Action
	actors   []kanban.Actor
}

func (f *fakeWorkspace) Execute(ctx context.Context, actor kanban.Actor, action kanban.Action) kanban.Outcome {
	f.executed = append(f.executed, action)
	f.actors = append(f.actors, actor)
	if f.executeFn != nil {
		return f.executeFn(ctx, actor, action)
	}
	return kanban.Outcome{Action: action.Kind(), Description: action.Describe(), Success: true}
}

func (f *fakeWorkspace) Boards(ctx context.Context, actor kanban.Actor) ([]store.BoardWithRole, error) {
	if f.boardsFn != nil {
		return f.boardsFn(ctx, actor)
	}
	return nil, nil
}

func (f *fakeWorkspace) Board(ctx context.Context, actor kanban.Actor, boardID string) (kanban.BoardDetail, error) {
	if f.boardFn != nil {
		return f.boardFn(ctx, actor, boardID)
	}
	return kanban.BoardDetail{}, sql.ErrNoRows
}

func (f *fakeWorkspace) Columns(context.Context, kanban.Actor, string) ([]store.Column, error) {
	return nil, nil
}

func (f *fakeWorkspace) BoardCards(ctx context.Context, actor kanban.Actor, boardID string, filter store.CardFilter) ([]kanban.CardView, error) {
	if f.boardCardsFn != nil {
		return f.boardCardsFn(ctx, actor, boardID, filter)
	}
	return nil, nil
}

func (f *fakeWorkspace) Card(ctx context.Context, actor kanban.Actor, cardID string) (kanban.CardDetail, error) {
	if f.cardFn != nil {
		return f.cardFn(ctx, actor, cardID)
	}
	return kanban.CardDetail{}, sql.ErrNoRows
}

func (f *fakeWorkspace) Inbox(context.Context, kanban.Actor) ([]store.Card, error) {
	return nil, nil
}

func (f *fakeWorkspace) Tags(context.Context, kanban.Actor, string) ([]store.Tag, error) {
	return nil, nil
}

func (f *fakeWorkspace) Comments(context.Context, kanban.Actor, string) ([]store.Comment, error) {
	return nil, nil
}

func (f *fakeWorkspace) AddComment(_ context.Context, actor kanban.Actor, cardID, body string) (store.Comment, error) {
	return store.Comment{ID: util.NewID(), CardID: cardID, UserID: actor.UserID, UserName: actor.Name, Body: body}, nil
}

type fakeAccounts struct {
	pingFn func(context.Context) error
	users  map[string]store.User
	tokens map[string]store.APIToken // keyed by hash
}

func newFakeAccounts(users ...store.User) *fakeAccounts {
	f := &fakeAccounts{users: map[string]store.User{}, tokens: map[string]store.APIToken{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeAccounts) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeAccounts) GetUserByID(_ context.Context, userID string) (store.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeAccounts) UpdateLLMContext(_ context.Context, userID, llmContext string) error {
	user := f.users[userID]
	user.LLMContext = llmContext
	f.users[userID] = user
	return nil
}

func (f *fakeAccounts) CreateAPIToken(_ context.Context, token store.APIToken) error {
	f.tokens[token.TokenHash] = token
	return nil
}

func (f *fakeAccounts) ListAPITokens(_ context.Context, userID string) ([]store.APIToken, error) {
	var tokens []store.APIToken
	for _, token := range f.tokens {
		if token.UserID == userID {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

func (f *fakeAccounts) TouchAPIToken(_ context.Context, tokenHash string) (store.APIToken, error) {
	token, ok := f.tokens[tokenHash]
	if !ok {
		return store.APIToken{}, sql.ErrNoRows
	}
	now := time.Now()
	token.LastUsedAt = &now
	f.tokens[tokenHash] = token
	return token, nil
}

func (f *fakeAccounts) RevokeAPIToken(_ context.Context, userID, tokenID string) (bool, error) {
	for hash, token := range f.tokens {
		if token.ID == tokenID && token.UserID == userID {
			delete(f.tokens, hash)
			return true, nil
		}
	}
	return false, nil
}

type memSessions struct {
	sessions map[string]string
}

func (m *memSessions) SaveSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	m.sessions[tokenHash] = userID
	return nil
}

func (m *memSessions) LookupSession(_ context.Context, tokenHash string) (string, error) {
	userID, ok := m.sessions[tokenHash]
	if !ok {
		return "", session.ErrNotFound
	}
	return userID, nil
}

func (m *memSessions) DeleteSession(_ context.Context, tokenHash string) error {
	delete(m.sessions, tokenHash)
	return nil
}

type fakePasswords struct {
	registerFn func(context.Context, authpw.RegisterRequest) (store.User, error)
	loginFn    func(context.Context, authpw.LoginRequest) (store.User, error)
}

func (f *fakePasswords) Register(ctx context.Context, req authpw.RegisterRequest) (store.User, error) {
	return f.registerFn(ctx, req)
}

func (f *fakePasswords) Login(ctx context.Context, req authpw.LoginRequest) (store.User, error) {
	return f.loginFn(ctx, req)
}

type fakeChat struct {
	runFn   func(context.Context, chat.Turn) (chat.Result, error)
	history []chat.HistoryEntry
	turns   []chat.Turn
}

func (f *fakeChat) Run(ctx context.Context, turn chat.Turn) (chat.Result, error) {
	f.turns = append(f.turns, turn)
	return f.runFn(ctx, turn)
}

func (f *fakeChat) History(context.Context, kanban.Actor, string) ([]chat.HistoryEntry, error) {
	return f.history, nil
}

type fakeSearch struct {
	ids     []string
	queries []string
}

func (f *fakeSearch) SearchCardIDs(_ context.Context, text string) ([]string, error) {
	f.queries = append(f.queries, text)
	return f.ids, nil
}

type testEnv struct {
	server    *Server
	workspace *fakeWorkspace
	accounts  *fakeAccounts
	sessions  *memSessions
	passwords *fakePasswords
	chat      *fakeChat
	search    *fakeSearch
}

func newTestEnv() *testEnv {
	env := &testEnv{
		workspace: &fakeWorkspace{},
		accounts:  newFakeAccounts(ada),
		sessions:  &memSessions{sessions: map[string]string{}},
		passwords: &fakePasswords{},
		chat:      &fakeChat{},
		search:    &fakeSearch{},
	}
	env.server = NewServer(Deps{
		Workspace: env.workspace,
		Accounts:  env.accounts,
		Sessions:  env.sessions,
		Passwords: env.passwords,
		Chat:      env.chat,
		Search:    env.search,
	}, Settings{JWTSecret: testSecret, AccessTTL: time.Hour, CORSOrigin: "*"})
	return env
}

// sessionToken logs user in without going through the password check.
func (env *testEnv) sessionToken(t *testing.T, user store.User) string {
	t.Helper()
	jti := util.NewID()
	expiresAt := time.Now().Add(time.Hour)
	token, err := auth.IssueToken([]byte(testSecret), user.ID, user.Name, jti, expiresAt)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := env.sessions.SaveSession(context.Background(), auth.HashToken(jti), user.ID, expiresAt); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	return token
}

func (env *testEnv) apiToken(user store.User, scope string) string {
	secret := util.NewToken(apiTokenPrefix)
	env.accounts.tokens[auth.HashToken(secret)] = store.APIToken{ID: util.NewID(), UserID: user.ID, Name: scope, Scope: scope}
	return secret
}

func (env *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, rr.Code, rr.Body.String())
	}
}
