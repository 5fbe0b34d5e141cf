// Package chat runs one conversational turn: snapshot the board, ask the
// model, apply the actions it proposes and record the exchange.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskboard/api/internal/kanban"
	"taskboard/api/internal/llm"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type State string

const (
	StateIdle             State = "idle"
	StateBuildingContext  State = "building_context"
	StateAwaitingModel    State = "awaiting_model"
	StateParsingReply     State = "parsing_reply"
	StateExecutingActions State = "executing_actions"
	StateRecording        State = "recording"
)

const (
	HistoryLimit     = 50
	promptHistory    = 10
	maxMessageLength = 10_000
	unavailableProse = "The assistant is unavailable right now. No changes were made."
)

// Executor is the part of kanban.Executor a turn needs.
type Executor interface {
	SnapshotBoard(ctx context.Context, actor kanban.Actor, boardID string) (kanban.BoardSnapshot, error)
	SnapshotGlobal(ctx context.Context, actor kanban.Actor) (kanban.GlobalSnapshot, error)
	Board(ctx context.Context, actor kanban.Actor, boardID string) (kanban.BoardDetail, error)
	Execute(ctx context.Context, actor kanban.Actor, action kanban.Action) kanban.Outcome
}

type Store interface {
	InsertChatMessage(ctx context.Context, msg store.ChatMessage) error
	ListChatMessages(ctx context.Context, userID string, boardID *string, limit int) ([]store.ChatMessage, error)
}

// Turn is one user message. BoardID "" addresses the global conversation.
type Turn struct {
	Actor      kanban.Actor
	BoardID    string
	Message    string
	LLMContext string
}

type Result struct {
	Response     string           `json:"response"`
	ActionsTaken []kanban.Outcome `json:"actions_taken"`
}

type HistoryEntry struct {
	ID           string           `json:"id"`
	BoardID      *string          `json:"board_id"`
	BoardName    string           `json:"board_name,omitempty"`
	Message      string           `json:"message"`
	Response     string           `json:"response"`
	ActionsTaken []kanban.Outcome `json:"actions_taken"`
	CreatedAt    time.Time        `json:"created_at"`
}

type Orchestrator struct {
	executor Executor
	provider llm.Provider
	store    Store
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrchestrator(executor Executor, provider llm.Provider, chatStore Store, timeout time.Duration, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{
		executor: executor,
		provider: provider,
		store:    chatStore,
		timeout:  timeout,
		logger:   logger.Named("chat"),
		now:      time.Now,
	}
}

// turnLog tracks the state of one turn and logs each transition.
type turnLog struct {
	logger *zap.Logger
	state  State
	start  time.Time
	now    func() time.Time
}

func (t *turnLog) enter(next State, fields ...zap.Field) {
	fields = append(fields,
		zap.String("from", string(t.state)),
		zap.String("to", string(next)),
		zap.Int64("elapsed_ms", t.now().Sub(t.start).Milliseconds()),
	)
	t.logger.Debug("chat state", fields...)
	t.state = next
}

// Run executes one turn. Errors are returned only before the model is
// called; once the model has been asked, the turn always completes and is
// recorded, with failures reported as outcomes.
func (o *Orchestrator) Run(ctx context.Context, turn Turn) (Result, error) {
	message := strings.TrimSpace(turn.Message)
	if message == "" {
		return Result{}, kanban.Validationf("message is required")
	}
	if len(message) > maxMessageLength {
		return Result{}, kanban.Validationf("message is too long (max %d characters)", maxMessageLength)
	}

	log := &turnLog{
		logger: o.logger.With(zap.String("user_id", turn.Actor.UserID), zap.String("board_id", turn.BoardID)),
		state:  StateIdle,
		start:  o.now(),
		now:    o.now,
	}

	log.enter(StateBuildingContext)
	var (
		system    string
		boardName string
		boardID   *string
	)
	if turn.BoardID != "" {
		snap, err := o.executor.SnapshotBoard(ctx, turn.Actor, turn.BoardID)
		if err != nil {
			log.enter(StateIdle, zap.Error(err))
			return Result{}, err
		}
		system = BoardPrompt(snap, turn.LLMContext)
		boardName = snap.Board.Name
		id := snap.Board.ID
		boardID = &id
	} else {
		snap, err := o.executor.SnapshotGlobal(ctx, turn.Actor)
		if err != nil {
			log.enter(StateIdle, zap.Error(err))
			return Result{}, err
		}
		system = GlobalPrompt(snap, turn.LLMContext)
	}
	prior, err := o.store.ListChatMessages(ctx, turn.Actor.UserID, boardID, promptHistory)
	if err != nil {
		log.enter(StateIdle, zap.Error(err))
		return Result{}, err
	}

	log.enter(StateAwaitingModel, zap.String("provider", o.provider.Name()))
	reply, err := o.complete(ctx, system, prior, message)

	var result Result
	if err != nil {
		timeout := llm.IsTimeout(err)
		kerr := kanban.LLMUnavailable(err, timeout)
		log.logger.Warn("language model call failed", zap.Bool("timeout", timeout), zap.Error(err))
		result = Result{
			Response: unavailableProse,
			ActionsTaken: []kanban.Outcome{{
				Action:      "llm",
				Description: "Ask the assistant",
				Error:       kerr.Message,
				Err:         kerr,
			}},
		}
	} else {
		log.enter(StateParsingReply, zap.Int("reply_bytes", len(reply)))
		parsed := ParseReply(reply)

		log.enter(StateExecutingActions, zap.Int("entries", len(parsed.Entries)))
		result = Result{Response: parsed.Prose, ActionsTaken: o.execute(ctx, turn, parsed.Entries)}
	}
	if result.ActionsTaken == nil {
		result.ActionsTaken = []kanban.Outcome{}
	}

	log.enter(StateRecording, zap.Int("actions", len(result.ActionsTaken)))
	o.record(ctx, log, turn, boardID, boardName, message, result)

	log.enter(StateIdle)
	return result, nil
}

func (o *Orchestrator) complete(ctx context.Context, system string, prior []store.ChatMessage, message string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	messages := make([]llm.Message, 0, 2*len(prior)+1)
	for _, past := range prior {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: past.Message},
			llm.Message{Role: llm.RoleAssistant, Content: past.Response},
		)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	resp, err := o.provider.Complete(callCtx, llm.Request{System: system, Messages: messages})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(err, context.DeadlineExceeded)
		}
		return "", err
	}
	return resp.Content, nil
}

func (o *Orchestrator) execute(ctx context.Context, turn Turn, entries []Entry) []kanban.Outcome {
	outcomes := make([]kanban.Outcome, 0, len(entries))
	for _, entry := range entries {
		if entry.Err != nil {
			outcomes = append(outcomes, kanban.Outcome{
				Action:      "parse",
				Description: "Read an action from the reply",
				Error:       entry.Err.Error(),
				Err:         entry.Err,
			})
			continue
		}
		action, err := Translate(entry.Directive, turn.BoardID)
		if err != nil {
			outcomes = append(outcomes, kanban.Outcome{
				Action:      entry.Directive.Action,
				Description: describeDirective(entry.Directive),
				Error:       err.Error(),
				Err:         err,
			})
			continue
		}
		if action == nil {
			continue
		}
		outcomes = append(outcomes, o.executor.Execute(ctx, turn.Actor, action))
	}
	return outcomes
}

// record stores the turn. It runs detached from the request so a client
// that hung up still gets its applied actions logged.
func (o *Orchestrator) record(ctx context.Context, log *turnLog, turn Turn, boardID *string, boardName, message string, result Result) {
	actions, err := json.Marshal(result.ActionsTaken)
	if err != nil {
		log.logger.Error("encode chat actions", zap.Error(err))
		actions = []byte("[]")
	}
	msg := store.ChatMessage{
		ID:        util.NewID(),
		BoardID:   boardID,
		BoardName: boardName,
		UserID:    turn.Actor.UserID,
		Message:   message,
		Response:  result.Response,
		Actions:   actions,
		CreatedAt: o.now().UTC(),
	}
	if err := o.store.InsertChatMessage(context.WithoutCancel(ctx), msg); err != nil {
		log.logger.Error("record chat message", zap.Error(err))
	}
}

// History returns the caller's latest messages in one conversation, oldest
// first. Board history requires membership.
func (o *Orchestrator) History(ctx context.Context, actor kanban.Actor, boardID string) ([]HistoryEntry, error) {
	var scope *string
	if boardID != "" {
		detail, err := o.executor.Board(ctx, actor, boardID)
		if err != nil {
			return nil, err
		}
		scope = &detail.Board.ID
	}
	messages, err := o.store.ListChatMessages(ctx, actor.UserID, scope, HistoryLimit)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		entry := HistoryEntry{
			ID:           msg.ID,
			BoardID:      msg.BoardID,
			BoardName:    msg.BoardName,
			Message:      msg.Message,
			Response:     msg.Response,
			ActionsTaken: []kanban.Outcome{},
			CreatedAt:    msg.CreatedAt,
		}
		if len(msg.Actions) > 0 {
			if err := json.Unmarshal(msg.Actions, &entry.ActionsTaken); err != nil {
				o.logger.Warn("decode chat actions", zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
