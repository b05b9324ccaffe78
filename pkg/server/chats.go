package server

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/chat"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

type chatList struct {
	Active             string         `json:"active,omitempty"`
	Chats              []chat.Summary `json:"chats"`
	CredentialSelected bool           `json:"credential_selected"`
}

type searchList struct {
	Query   string              `json:"query"`
	Results []chat.SearchResult `json:"results"`
}

type chatView struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Model    types.Model     `json:"model"`
	Active   bool            `json:"active"`
	Messages []types.Message `json:"messages"`
	Pending  *types.Message  `json:"pending,omitempty"`
}

type turnView struct {
	ChatID string        `json:"chat_id"`
	Title  string        `json:"title"`
	Reply  types.Message `json:"reply"`
	Error  *errorBody    `json:"error,omitempty"`
}

type createChatRequest struct {
	Model string `json:"model,omitempty"`
	Tool  string `json:"tool,omitempty"`
}

type updateChatRequest struct {
	Title  *string `json:"title,omitempty"`
	Model  *string `json:"model,omitempty"`
	Active bool    `json:"active,omitempty"`
}

type imageUpload struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type turnRequest struct {
	Prompt      string       `json:"prompt"`
	Mode        string       `json:"mode,omitempty"`
	AspectRatio string       `json:"aspect_ratio,omitempty"`
	Image       *imageUpload `json:"image,omitempty"`
}

type editRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	list := s.store.List()
	if list == nil {
		list = []chat.Summary{}
	}
	writeJSON(w, http.StatusOK, chatList{
		Active:             s.store.Active(),
		Chats:              list,
		CredentialSelected: s.turns.CredentialSelected(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, r, badRequest("query parameter q is required"))
		return
	}
	results := s.store.Search(q)
	if results == nil {
		results = []chat.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchList{Query: q, Results: results})
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		id  string
		err error
	)
	switch {
	case req.Tool != "" && req.Model != "":
		err = badRequest("model and tool are mutually exclusive")
	case req.Tool != "":
		id, err = s.store.CreateToolChat(r.Context(), req.Tool)
	default:
		var model types.Model
		if req.Model != "" {
			if model, err = types.ParseModel(req.Model); err != nil {
				err = badRequest(err.Error())
				break
			}
		}
		id, err = s.store.Create(r.Context(), model)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeChat(w, r, http.StatusCreated, id)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	s.writeChat(w, r, http.StatusOK, r.PathValue("id"))
}

func (s *Server) handleUpdateChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateChatRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, ok := s.store.Get(id); !ok {
		writeError(w, r, notFound("chat "+strconv.Quote(id)+" not found"))
		return
	}

	if req.Title != nil {
		if err := s.store.Rename(r.Context(), id, *req.Title); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Model != nil {
		model, err := types.ParseModel(*req.Model)
		if err != nil {
			writeError(w, r, badRequest(err.Error()))
			return
		}
		if err := s.store.SwitchModel(r.Context(), id, model); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Active {
		if err := s.store.SetActive(id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	s.writeChat(w, r, http.StatusOK, id)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	comp, err := composerFor(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if comp.Mode().Kind() == chat.ModeVideoGen && !s.turns.CredentialSelected() {
		writeError(w, r, &core.Error{
			Type:    core.ErrPermission,
			Message: "the API key was rejected; fix it and select it again before generating videos",
			Code:    "credential_required",
		})
		return
	}
	res, err := s.turns.Submit(r.Context(), r.PathValue("id"), comp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeTurn(w, r, res)
}

// handleSelectCredential re-enables credential-gated features after the
// key has been fixed.
func (s *Server) handleSelectCredential(w http.ResponseWriter, r *http.Request) {
	s.turns.SelectCredential()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, r, badRequest("message index must be a non-negative integer"))
		return
	}
	var req editRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.turns.EditAndResubmit(r.Context(), r.PathValue("id"), index, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeTurn(w, r, res)
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.turns.Explore(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeTurn(w, r, res)
}

// composerFor builds the composer for a turn request. An image is an
// attachment in plain mode and the source frame in video mode. Other
// generation modes reject it.
func composerFor(req turnRequest) (*chat.Composer, error) {
	mode, err := chat.ParseMode(req.Mode, req.AspectRatio)
	if err != nil {
		return nil, badRequest(err.Error())
	}
	comp := &chat.Composer{Prompt: req.Prompt}
	comp.SetMode(mode)
	if req.Image == nil {
		return comp, nil
	}
	if mode.Kind() != chat.ModePlain && mode.Kind() != chat.ModeVideoGen {
		return nil, badRequest("an attached image cannot be combined with " + mode.Kind().String() + " mode")
	}
	if _, err := base64.StdEncoding.DecodeString(req.Image.Data); err != nil {
		return nil, badRequest("image data must be base64")
	}
	if err := comp.Attach(types.InlineMediaPart{MIMEType: req.Image.MIMEType, Data: req.Image.Data}); err != nil {
		return nil, badRequest(err.Error())
	}
	return comp, nil
}

func (s *Server) writeChat(w http.ResponseWriter, r *http.Request, status int, id string) {
	snap, ok := s.store.Get(id)
	if !ok {
		writeError(w, r, notFound("chat "+strconv.Quote(id)+" not found"))
		return
	}
	messages := snap.Messages
	if messages == nil {
		messages = []types.Message{}
	}
	writeJSON(w, status, chatView{
		ID:       snap.ID,
		Title:    snap.Title,
		Model:    snap.Model,
		Active:   s.store.Active() == snap.ID,
		Messages: messages,
		Pending:  snap.Pending,
	})
}

// writeTurn answers 200 for every finished turn. A backend failure is part
// of the conversation, so it is reported next to the reply.
func (s *Server) writeTurn(w http.ResponseWriter, r *http.Request, res *chat.TurnResult) {
	view := turnView{ChatID: res.SessionID, Title: res.Title, Reply: res.Reply}
	if res.Err != nil {
		body := newErrorBody(res.Err, requestIDFrom(r.Context()))
		view.Error = &body
	}
	writeJSON(w, http.StatusOK, view)
}
