package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	LLMContext   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type APIToken struct {
	ID         string
	UserID     string
	Name       string
	TokenHash  string
	Scope      string
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

type Board struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BoardWithRole is a board as seen by one user.
type BoardWithRole struct {
	Board
	Role string
}

type BoardPermission struct {
	BoardID   string
	UserID    string
	UserName  string
	UserEmail string
	Role      string
}

type Column struct {
	ID        string
	BoardID   string
	Name      string
	Position  int
	CreatedAt time.Time
}

type Card struct {
	ID         string
	Title      string
	Body       string
	Visibility string
	Status     string
	StartDate  *time.Time
	EndDate    *time.Time
	DueDate    *time.Time
	OwnerID    *string
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CardBoard places a card on a board. ColumnID nil means the board's unfiled bucket.
type CardBoard struct {
	ID        string
	CardID    string
	BoardID   string
	ColumnID  *string
	Position  int
	CreatedAt time.Time
}

// BoardCard is a card joined with its placement on one board.
type BoardCard struct {
	Card
	Placement CardBoard
}

type Tag struct {
	ID        string
	BoardID   *string
	OwnerID   *string
	Name      string
	Color     string
	CreatedAt time.Time
}

type Comment struct {
	ID        string
	CardID    string
	UserID    string
	UserName  string
	Body      string
	CreatedAt time.Time
}

type ChatMessage struct {
	ID        string
	BoardID   *string
	BoardName string
	UserID    string
	Message   string
	Response  string
	Actions   json.RawMessage
	CreatedAt time.Time
}

// CardFilter narrows a board card listing. Zero values do not filter.
type CardFilter struct {
	CardIDs     []string
	TagIDs      []string
	Status      string
	StartFrom   *time.Time
	StartTo     *time.Time
	EndFrom     *time.Time
	EndTo       *time.Time
	DueFrom     *time.Time
	DueTo       *time.Time
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
}
