package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/pairchat/internal/domain"

	"github.com/go-chi/chi/v5"
)

type createUserRequest struct {
	Name string `json:"name"`
}

type userResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type nameResponse struct {
	Name string `json:"name"`
}

type userIDsResponse struct {
	UserIDs []string `json:"user_ids"`
}

type messagesResponse struct {
	Messages []domain.Frame `json:"messages"`
}

func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	name, err := domain.ValidateName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, sid := s.state.CreateUser(name)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("user created", "user", u.ID)
	writeJSON(w, http.StatusOK, userResponse{ID: string(u.ID), Name: u.Name})
}

func (s *Server) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ck, err := r.Cookie(sessionCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "no session")
		return
	}
	u, err := s.state.UserBySession(ck.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: string(u.ID), Name: u.Name})
}

func (s *Server) DisplayName(w http.ResponseWriter, r *http.Request) {
	u, err := s.state.User(domain.UserID(chi.URLParam(r, "uid")))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nameResponse{Name: u.Name})
}

func (s *Server) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	cid := channelFromCtx(r.Context())
	if _, err := s.state.Members(cid); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, userIDsResponse{UserIDs: idStrings(s.hub.Online(cid))})
}

func (s *Server) ChannelUsers(w http.ResponseWriter, r *http.Request) {
	members, err := s.state.Members(channelFromCtx(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, userIDsResponse{UserIDs: idStrings(members)})
}

func (s *Server) Backlog(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.state.Messages(channelFromCtx(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if msgs == nil {
		msgs = []domain.Frame{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
}

// LeaveChannel рассылает leaved от имени delby и удаляет канал.
// Повторный вызов для удалённого канала: тоже 204.
func (s *Server) LeaveChannel(w http.ResponseWriter, r *http.Request) {
	cid := channelFromCtx(r.Context())
	by := domain.UserID(r.URL.Query().Get("delby"))

	err := s.state.CheckMember(cid, by)
	switch {
	case errors.Is(err, ErrChannelNotFound):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	s.hub.Broadcast(cid, domain.Frame{Event: domain.EventAction, UserID: by, Payload: string(domain.ActionLeaved)})
	s.state.DeleteChannel(cid)
	slog.Info("channel deleted", "channel", cid, "by", by)
	w.WriteHeader(http.StatusNoContent)
}

func idStrings(ids []domain.UserID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
