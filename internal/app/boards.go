package app

import (
	"net/http"

	"taskboard/api/internal/kanban"
)

func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Columns     []string `json:"columns"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.CreateBoard{Name: body.Name, Description: body.Description, Columns: body.Columns}, http.StatusCreated)
}

func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.workspace.Boards(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]boardView, 0, len(boards))
	for _, b := range boards {
		views = append(views, newBoardView(b.Board, b.Role))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	detail, err := s.workspace.Board(r.Context(), actorFrom(r.Context()), board.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := boardDetailView{
		boardView:   newBoardView(detail.Board, detail.Role),
		Columns:     columnViews(detail.Columns),
		Permissions: make([]permissionView, 0, len(detail.Permissions)),
	}
	for _, p := range detail.Permissions {
		view.Permissions = append(view.Permissions, newPermissionView(p))
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.UpdateBoard{Board: board, Name: body.Name, Description: body.Description}, http.StatusOK)
}

func (s *Server) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.DeleteBoard{Board: board}, http.StatusOK)
}

func (s *Server) handleSetPermission(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Role   string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.SetPermission{Board: board, UserID: body.UserID, Email: body.Email, Role: body.Role}, http.StatusOK)
}

func (s *Server) handleRemovePermission(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := pathRef(r, "userID", "member")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.RemovePermission{Board: board, UserID: user.ID}, http.StatusOK)
}

func (s *Server) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Name     string `json:"name"`
		Position *int   `json:"position"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.CreateColumn{Board: board, Name: body.Name, Position: body.Position}, http.StatusCreated)
}

func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	columns, err := s.workspace.Columns(r.Context(), actorFrom(r.Context()), board.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, columnViews(columns))
}

func (s *Server) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	column, err := pathRef(r, "columnID", "column")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.UpdateColumn{Column: column, Name: body.Name}, http.StatusOK)
}

func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	column, err := pathRef(r, "columnID", "column")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.DeleteColumn{Column: column}, http.StatusOK)
}

func (s *Server) handleMoveColumn(w http.ResponseWriter, r *http.Request) {
	column, err := pathRef(r, "columnID", "column")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Position *int `json:"position"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.Position == nil {
		s.fail(w, r, kanban.Validationf("position is required"))
		return
	}
	s.run(w, r, kanban.MoveColumn{Column: column, Position: *body.Position}, http.StatusOK)
}

type tagBody struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleCreateBoardTag(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body tagBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.CreateTag{Board: board, Name: body.Name, Color: body.Color}, http.StatusCreated)
}

func (s *Server) handleListBoardTags(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.listTags(w, r, board.ID)
}

func (s *Server) handleCreateUserTag(w http.ResponseWriter, r *http.Request) {
	var body tagBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.CreateTag{Name: body.Name, Color: body.Color}, http.StatusCreated)
}

func (s *Server) handleListUserTags(w http.ResponseWriter, r *http.Request) {
	s.listTags(w, r, "")
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request, boardID string) {
	tags, err := s.workspace.Tags(r.Context(), actorFrom(r.Context()), boardID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tagViews(tags))
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	tag, err := pathRef(r, "tagID", "tag")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Name  *string `json:"name"`
		Color *string `json:"color"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.UpdateTag{Tag: tag, Name: body.Name, Color: body.Color}, http.StatusOK)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	tag, err := pathRef(r, "tagID", "tag")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, kanban.DeleteTag{Tag: tag}, http.StatusOK)
}
