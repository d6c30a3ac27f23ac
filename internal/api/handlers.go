package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/synth"
)

// Handler holds API route handlers.
type Handler struct {
	svc Assistant
}

// NewHandler creates a new Handler.
func NewHandler(svc Assistant) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Search handles GET /api/search.
//
//	@Summary		Answer a question from the notes that mention it
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search term"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	answer, err := h.svc.Search(r.Context(), q)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Answer: answer})
}

// Analyze handles POST /api/analyze.
//
//	@Summary		Analyze the vault
//	@Tags			vault
//	@Produce		json
//	@Success		200	{object}	assistant.Analysis
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Analyze(r.Context())
	if err != nil {
		writeError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	notes := h.svc.Notes(r.Context(), models.SelectionQuery{Term: q.Get("q"), Limit: limit})
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes})
}

// GetNote handles GET /api/notes/*.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.ReadNote(r.Context(), path)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateSession handles POST /api/sessions.
//
//	@Summary		Start a conversation
//	@Tags			sessions
//	@Produce		json
//	@Success		201	{object}	SessionCreatedResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.OpenSession(r.Context())
	if err != nil {
		writeError(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionCreatedResponse{ID: id})
}

// GetSession handles GET /api/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SendMessage handles POST /api/sessions/{id}/messages.
//
//	@Summary		Send a chat message
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		MessageRequest	true	"Message"
//	@Success		200		{object}	MessageResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/messages [post]
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := h.svc.Chat(r.Context(), id, req.Message)
	if err != nil {
		writeError(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{SessionID: id, Reply: reply})
}

// GenerateNote handles POST /api/notes/generate.
//
//	@Summary		Draft a note with the model
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GenerateRequest	true	"Topic and style"
//	@Success		200		{object}	GenerateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/generate [post]
func (h *Handler) GenerateNote(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.Generate(r.Context(), req.Topic, req.Style)
	if err != nil {
		writeError(w, "generate note", err)
		return
	}
	resp := GenerateResponse{Note: note}
	if req.Save {
		path, err := h.svc.Save(r.Context(), note, req.Overwrite)
		if err != nil {
			writeError(w, "save note", err)
			return
		}
		resp.Path = path
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaveNote handles POST /api/notes.
//
//	@Summary		Write a note with generated front matter
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveNoteRequest	true	"Note to write"
//	@Success		201		{object}	SaveNoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	var req SaveNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title and body are required"))
		return
	}
	tags := append([]string{synth.GeneratedTag}, req.Tags...)
	path, err := h.svc.Save(r.Context(), models.GeneratedNote{
		Title: req.Title,
		Body:  req.Body,
		Tags:  dedupe(tags),
	}, req.Overwrite)
	if err != nil {
		writeError(w, "save note", err)
		return
	}
	writeJSON(w, http.StatusCreated, SaveNoteResponse{Path: path})
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		if _, dup := seen[s]; dup || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
