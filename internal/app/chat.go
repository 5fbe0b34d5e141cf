package app

import (
	"net/http"

	"taskboard/api/internal/chat"
)

func (s *Server) handleBoardChat(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.chatTurn(w, r, board.ID)
}

func (s *Server) handleGlobalChat(w http.ResponseWriter, r *http.Request) {
	s.chatTurn(w, r, "")
}

// chatTurn always answers 200 once the model was asked; failed actions and
// an unreachable model are reported inside actions_taken.
func (s *Server) chatTurn(w http.ResponseWriter, r *http.Request, boardID string) {
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	p := principalFrom(r.Context())
	result, err := s.chat.Run(r.Context(), chat.Turn{
		Actor:      actorFrom(r.Context()),
		BoardID:    boardID,
		Message:    body.Message,
		LLMContext: p.User.LLMContext,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBoardChatHistory(w http.ResponseWriter, r *http.Request) {
	board, err := pathRef(r, "boardID", "board")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.chatHistory(w, r, board.ID)
}

func (s *Server) handleGlobalChatHistory(w http.ResponseWriter, r *http.Request) {
	s.chatHistory(w, r, "")
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request, boardID string) {
	entries, err := s.chat.History(r.Context(), actorFrom(r.Context()), boardID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []chat.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
