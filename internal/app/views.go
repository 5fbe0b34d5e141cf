package app

import (
	"time"

	"taskboard/api/internal/kanban"
	"taskboard/api/internal/store"
)

type userView struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	LLMContext string    `json:"llm_context"`
	CreatedAt  time.Time `json:"created_at"`
}

func newUserView(u store.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, LLMContext: u.LLMContext, CreatedAt: u.CreatedAt}
}

type tokenView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Scope      string     `json:"scope"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newTokenView(t store.APIToken) tokenView {
	return tokenView{ID: t.ID, Name: t.Name, Scope: t.Scope, ExpiresAt: t.ExpiresAt, LastUsedAt: t.LastUsedAt, CreatedAt: t.CreatedAt}
}

type boardView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	Role        string    `json:"role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newBoardView(b store.Board, role string) boardView {
	return boardView{
		ID: b.ID, Name: b.Name, Description: b.Description, OwnerID: b.OwnerID,
		Role: role, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

type boardDetailView struct {
	boardView
	Columns     []columnView     `json:"columns"`
	Permissions []permissionView `json:"permissions"`
}

type permissionView struct {
	BoardID   string `json:"board_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	Role      string `json:"role"`
}

func newPermissionView(p store.BoardPermission) permissionView {
	return permissionView{BoardID: p.BoardID, UserID: p.UserID, UserName: p.UserName, UserEmail: p.UserEmail, Role: p.Role}
}

type columnView struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

func newColumnView(c store.Column) columnView {
	return columnView{ID: c.ID, BoardID: c.BoardID, Name: c.Name, Position: c.Position, CreatedAt: c.CreatedAt}
}

func columnViews(columns []store.Column) []columnView {
	views := make([]columnView, 0, len(columns))
	for _, c := range columns {
		views = append(views, newColumnView(c))
	}
	return views
}

type placementView struct {
	ID       string  `json:"id"`
	BoardID  string  `json:"board_id"`
	ColumnID *string `json:"column_id"`
	Position int     `json:"position"`
}

func newPlacementView(p store.CardBoard) placementView {
	return placementView{ID: p.ID, BoardID: p.BoardID, ColumnID: p.ColumnID, Position: p.Position}
}

type cardView struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Visibility string          `json:"visibility"`
	Status     string          `json:"status"`
	StartDate  *time.Time      `json:"start_date"`
	EndDate    *time.Time      `json:"end_date"`
	DueDate    *time.Time      `json:"due_date"`
	OwnerID    *string         `json:"owner_id"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Placement  *placementView  `json:"placement,omitempty"`
	Placements []placementView `json:"placements,omitempty"`
	Tags       []tagView       `json:"tags,omitempty"`
}

func newCardView(c store.Card) cardView {
	return cardView{
		ID: c.ID, Title: c.Title, Body: c.Body, Visibility: c.Visibility, Status: c.Status,
		StartDate: c.StartDate, EndDate: c.EndDate, DueDate: c.DueDate, OwnerID: c.OwnerID,
		CreatedBy: c.CreatedBy, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func boardCardView(c kanban.CardView) cardView {
	view := newCardView(c.Card)
	placement := newPlacementView(c.Placement)
	view.Placement = &placement
	view.Tags = tagViews(c.Tags)
	return view
}

func cardDetailView(d kanban.CardDetail) cardView {
	view := newCardView(d.Card)
	view.Placements = make([]placementView, 0, len(d.Placements))
	for _, p := range d.Placements {
		view.Placements = append(view.Placements, newPlacementView(p))
	}
	view.Tags = tagViews(d.Tags)
	return view
}

func cardViews(cards []store.Card) []cardView {
	views := make([]cardView, 0, len(cards))
	for _, c := range cards {
		views = append(views, newCardView(c))
	}
	return views
}

type tagView struct {
	ID      string  `json:"id"`
	BoardID *string `json:"board_id"`
	OwnerID *string `json:"owner_id"`
	Name    string  `json:"name"`
	Color   string  `json:"color"`
}

func newTagView(t store.Tag) tagView {
	return tagView{ID: t.ID, BoardID: t.BoardID, OwnerID: t.OwnerID, Name: t.Name, Color: t.Color}
}

func tagViews(tags []store.Tag) []tagView {
	views := make([]tagView, 0, len(tags))
	for _, t := range tags {
		views = append(views, newTagView(t))
	}
	return views
}

type commentView struct {
	ID        string    `json:"id"`
	CardID    string    `json:"card_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func newCommentView(c store.Comment) commentView {
	return commentView{ID: c.ID, CardID: c.CardID, UserID: c.UserID, UserName: c.UserName, Body: c.Body, CreatedAt: c.CreatedAt}
}

// entityView renders whatever an executed action handed back.
func entityView(entity any) any {
	switch e := entity.(type) {
	case store.BoardWithRole:
		return newBoardView(e.Board, e.Role)
	case store.BoardPermission:
		return newPermissionView(e)
	case store.Column:
		return newColumnView(e)
	case store.Tag:
		return newTagView(e)
	case kanban.PlacedCard:
		view := newCardView(e.Card)
		if e.Placement != nil {
			placement := newPlacementView(*e.Placement)
			view.Placement = &placement
		}
		return view
	case []kanban.CardView:
		views := make([]cardView, 0, len(e))
		for _, c := range e {
			views = append(views, boardCardView(c))
		}
		return views
	case []store.Tag:
		return tagViews(e)
	default:
		return entity
	}
}
