package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/nexusmena/internal/auth"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/service"
)

// LibraryHandler serves the signed-in user's profile and library.
//
// Every route is behind auth.RequireAuth, so the user ID is always in the
// request context.
type LibraryHandler struct {
	library *service.LibraryService
	logger  *slog.Logger
}

func NewLibraryHandler(svc *service.LibraryService, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{library: svc, logger: logger}
}

// userID reads the ID set by RequireAuth. If it is missing the route was
// registered without the middleware; answer 401 rather than serve another
// user's data.
func (h *LibraryHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
	}
	return id, ok
}

// HandleMe returns the user with preferences, favorites, chats and analyses.
//
// HTTP: GET /api/me
func (h *LibraryHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, err := h.library.Profile(r.Context(), uid)
	if err != nil {
		h.logger.Error("HandleMe: profile lookup failed", slog.String("userID", uid), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleFavorites lists favorite item IDs in the order they were added.
//
// HTTP: GET /api/me/favorites
func (h *LibraryHandler) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	favs, err := h.library.Favorites(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

// HandleToggleFavorite adds or removes one item.
//
// HTTP: POST /api/me/favorites/{id}
// RESPONSE: {"favorites": ["n1", "p2"], "added": true}
func (h *LibraryHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	favs, added, err := h.library.ToggleFavorite(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favs, "added": added})
}

// HandleSaved returns the favorited items themselves.
//
// HTTP: GET /api/me/saved
func (h *LibraryHandler) HandleSaved(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	items, err := h.library.Saved(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleChats lists saved transcripts, newest first.
//
// HTTP: GET /api/me/chats
func (h *LibraryHandler) HandleChats(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	chats, err := h.library.Chats(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

// HandleSaveChat keeps a transcript.
//
// HTTP: POST /api/me/chats
// REQUEST BODY: {"messages": [{"role": "user", "content": "..."}, ...]}
//
// An empty transcript is not saved: 204 No Content.
func (h *LibraryHandler) HandleSaveChat(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Messages []model.ChatMessage `json:"messages"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	chat, err := h.library.SaveChat(r.Context(), uid, req.Messages)
	if err != nil {
		writeError(w, err)
		return
	}
	if chat == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

// HandleAnalyses lists saved podcast analyses, newest first.
//
// HTTP: GET /api/me/analyses
func (h *LibraryHandler) HandleAnalyses(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	out, err := h.library.Analyses(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSaveAnalysis keeps a podcast analysis report.
//
// HTTP: POST /api/me/analyses
func (h *LibraryHandler) HandleSaveAnalysis(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	var a model.SavedAnalysis
	if !decodeJSON(w, r, &a) {
		return
	}
	saved, err := h.library.SaveAnalysis(r.Context(), uid, a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// HandlePreferences returns the user's settings.
//
// HTTP: GET /api/me/preferences
func (h *LibraryHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, err := h.library.Preferences(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdatePreferences replaces the user's settings.
//
// HTTP: PUT /api/me/preferences
// REQUEST BODY: {"notifications": true, "regions": ["Egypt"], "locale": "ar", "theme": "dark"}
func (h *LibraryHandler) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	var p model.Preferences
	if !decodeJSON(w, r, &p) {
		return
	}
	saved, err := h.library.UpdatePreferences(r.Context(), uid, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleTogglePreference flips notifications, theme or language.
//
// HTTP: POST /api/me/preferences/toggle/{field}
func (h *LibraryHandler) HandleTogglePreference(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, err := h.library.TogglePreference(r.Context(), uid, chi.URLParam(r, "field"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
