package app

import (
	"net/http"
	"strings"

	"taskboard/api/internal/kanban"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type createCardBody struct {
	BoardID    string    `json:"board_id"`
	ColumnID   string    `json:"column_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Visibility string    `json:"visibility"`
	Status     string    `json:"status"`
	StartDate  dateField `json:"start_date"`
	EndDate    dateField `json:"end_date"`
	DueDate    dateField `json:"due_date"`
	OwnerID    string    `json:"owner_id"`
	Position   *int      `json:"position"`
}

func (b createCardBody) action() (kanban.CreateCard, error) {
	action := kanban.CreateCard{
		Title:      b.Title,
		Body:       b.Body,
		Visibility: b.Visibility,
		Status:     b.Status,
		OwnerID:    b.OwnerID,
		Position:   b.Position,
	}
	var err error
	if action.Board, err = optionalRef(b.BoardID, "board_id"); err != nil {
		return action, err
	}
	if action.Column, err = optionalRef(b.ColumnID, "column_id"); err != nil {
		return action, err
	}
	if action.StartDate, err = b.StartDate.value(); err != nil {
		return action, err
	}
	if action.EndDate, err = b.EndDate.value(); err != nil {
		return action, err
	}
	if action.DueDate, err = b.DueDate.value(); err != nil {
		return action, err
	}
	return action, nil
}

// handleCreateCard creates a card, standalone unless board_id is given.
func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var body createCardBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	action, err := body.action()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, action, http.StatusCreated)
}

func (s *Server) handleCreateColumnCard(w http.ResponseWriter, r *http.Request) {
	column, err := pathRef(r, "columnID", "column")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body createCardBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	body.BoardID = ""
	action, err := body.action()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	action.Column = column
	s.run(w, r, action, http.StatusCreated)
}

func (s *Server) handleListBoardCards(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	filter, err := s.cardFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cards, err := s.workspace.BoardCards(r.Context(), actorFrom(r.Context()), board.ID, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]cardView, 0, len(cards))
	for _, c := range cards {
		views = append(views, boardCardView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) cardFilter(r *http.Request) (store.CardFilter, error) {
	query := r.URL.Query()
	filter := store.CardFilter{Status: strings.TrimSpace(query.Get("status"))}

	if raw := strings.TrimSpace(query.Get("tags")); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if !util.IsUUID(id) {
				return filter, kanban.Validationf("tags must be a comma-separated list of tag ids")
			}
			filter.TagIDs = append(filter.TagIDs, id)
		}
	}

	var err error
	if filter.StartFrom, err = queryDate(r, "start_from"); err != nil {
		return filter, err
	}
	if filter.StartTo, err = queryDate(r, "start_to"); err != nil {
		return filter, err
	}
	if filter.EndFrom, err = queryDate(r, "end_from"); err != nil {
		return filter, err
	}
	if filter.EndTo, err = queryDate(r, "end_to"); err != nil {
		return filter, err
	}
	if filter.DueFrom, err = queryDate(r, "due_from"); err != nil {
		return filter, err
	}
	if filter.DueTo, err = queryDate(r, "due_to"); err != nil {
		return filter, err
	}
	if filter.UpdatedFrom, err = queryTime(r, "updated_from"); err != nil {
		return filter, err
	}
	if filter.UpdatedTo, err = queryTime(r, "updated_to"); err != nil {
		return filter, err
	}

	if text := strings.TrimSpace(query.Get("q")); text != "" {
		if s.search == nil {
			return filter, kanban.Validationf("full-text search is not available")
		}
		ids, err := s.search.SearchCardIDs(r.Context(), text)
		if err != nil {
			return filter, err
		}
		if ids == nil {
			ids = []string{}
		}
		filter.CardIDs = ids
	}
	return filter, nil
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := pathRef(r, "cardID", "card")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	detail, err := s.workspace.Card(r.Context(), actorFrom(r.Context()), card.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardDetailView(detail))
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	card, err := pathRef(r, "cardID", "card")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		BoardID    string    `json:"board_id"`
		Title      *string   `json:"title"`
		Body       *string   `json:"body"`
		Visibility *string   `json:"visibility"`
		Status     *string   `json:"status"`
		StartDate  dateField `json:"start_date"`
		EndDate    dateField `json:"end_date"`
		DueDate    dateField `json:"due_date"`
		OwnerID    *string   `json:"owner_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	action := kanban.UpdateCard{
		Card:       card,
		Title:      body.Title,
		Body:       body.Body,
		Visibility: body.Visibility,
		Status:     body.Status,
		OwnerID:    body.OwnerID,
	}
	if action.Board, err = optionalRef(body.BoardID, "board_id"); err != nil {
		s.fail(w, r, err)
		return
	}
	for _, date := range []struct {
		field  dateField
		target *kanban.DatePatch
	}{
		{body.StartDate, &action.StartDate},
		{body.EndDate, &action.EndDate},
		{body.DueDate, &action.DueDate},
	} {
		if *date.target, err = date.field.patch(); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.run(w, r, action, http.StatusOK)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	card, err := pathRef(r, "cardID", "card")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	board, err := optionalRef(r.URL.Query().Get("board_id"), "board_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.DeleteCard{Card: card, Board: board}, http.StatusOK)
}

type placementBody struct {
	BoardID  string `json:"board_id"`
	ColumnID string `json:"column_id"`
	Position *int   `json:"position"`
}

func (b placementBody) refs() (board, column kanban.Ref, err error) {
	if board, err = optionalRef(b.BoardID, "board_id"); err != nil {
		return
	}
	if board.IsZero() {
		err = kanban.Validationf("board_id is required")
		return
	}
	column, err = optionalRef(b.ColumnID, "column_id")
	return
}

// handleMoveCard moves a card within a board. A missing column_id moves
// it to the board's unfiled bucket.
func (s *Server) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	card, err := pathRef(r, "cardID", "card")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body placementBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	board, column, err := body.refs()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.MoveCard{Card: card, Board: board, Column: column, Position: body.Position}, http.StatusOK)
}

func (s *Server) handleAssignCard(w http.ResponseWriter, r *http.Request) {
	card, err := pathRef(r, "cardID", "card")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body placementBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	board, column, err := body.refs()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.AssignCardToBoard{Card: card, Board: board, Column: column, Position: body.Position}, http.StatusCreated)
}

func (s *Server) handleUnassignCard(w http.ResponseWriter, r *http.Request) {
	card, err := pathRef(r, "cardID", "card")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.UnassignCardFromBoard{Card: card, Board: board}, http.StatusOK)
}

func (s *Server) cardTagRefs(r *http.Request) (card, tag, board kanban.Ref, err error) {
	if card, err = pathRef(r, "cardID", "card"); err != nil {
		return
	}
	if tag, err = pathRef(r, "tagID", "tag"); err != nil {
		return
	}
	board, err = optionalRef(r.URL.Query().Get("board_id"), "board_id")
	return
}

func (s *Server) handleAddCardTag(w http.ResponseWriter, r *http.Request) {
	card, tag, board, err := s.cardTagRefs(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.AddTagToCard{Card: card, Tag: tag, Board: board}, http.StatusOK)
}

func (s *Server) handleRemoveCardTag(w http.ResponseWriter, r *http.Request) {
	card, tag, board, err := s.cardTagRefs(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.RemoveTagFromCard{Card: card, Tag: tag, Board: board}, http.StatusOK)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	card, err := pathRef(r, "cardID", "card")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	comments, err := s.workspace.Comments(r.Context(), actorFrom(r.Context()), card.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]commentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, newCommentView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	card, err := pathRef(r, "cardID", "card")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	comment, err := s.workspace.AddComment(r.Context(), actorFrom(r.Context()), card.ID, body.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCommentView(comment))
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	cards, err := s.workspace.Inbox(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardViews(cards))
}
