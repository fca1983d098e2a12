package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/audio"
	"github.com/sakif/nexusmena/internal/auth"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/service"
)

// AIHandler exposes the assistant features over HTTP.
//
// FALLBACKS ARE NOT ERRORS:
// When the AI provider is unreachable (or no API key is configured) the
// gateway still answers with a user-facing fallback text. These handlers
// return 200 with "fallback": true in that case; only bad input is a 4xx.
type AIHandler struct {
	assistant *service.AssistantService
	logger    *slog.Logger
}

func NewAIHandler(svc *service.AssistantService, logger *slog.Logger) *AIHandler {
	return &AIHandler{assistant: svc, logger: logger}
}

type textRequest struct {
	Text     string         `json:"text"`
	Language model.Language `json:"language"`
}

// HandleSummarize condenses text into three bullet points.
//
// HTTP: POST /api/ai/summarize
// REQUEST BODY: {"text": "...", "language": "ar"}
// RESPONSE: {"text": "- ...", "fallback": false}
func (h *AIHandler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.assistant.Summarize(r.Context(), req.Text, req.Language)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleTranslate translates text into the requested language.
//
// HTTP: POST /api/ai/translate
// REQUEST BODY: {"text": "...", "language": "en"}
func (h *AIHandler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.assistant.Translate(r.Context(), req.Text, req.Language)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleMarketInsight comments on the current market snapshot.
//
// HTTP: GET /api/market/insight
func (h *AIHandler) HandleMarketInsight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.assistant.MarketInsight(r.Context()))
}

// HandleSpeech reads text aloud.
//
// HTTP: POST /api/ai/speech
// REQUEST BODY: {"text": "..."}
//
// CONTENT NEGOTIATION:
// A client sending "Accept: audio/wav" gets a playable WAV file (what an
// <audio> element wants). Anyone else gets JSON with the raw base64 PCM
// (s16le, 24 kHz, mono), for clients that decode it themselves.
func (h *AIHandler) HandleSpeech(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sp, err := h.assistant.Speak(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	if !wantsWAV(r) {
		writeJSON(w, http.StatusOK, sp)
		return
	}
	if sp.Fallback {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "synthesis_failed", Message: sp.Notice})
		return
	}
	h.writeWAV(w, sp.Buffer)
}

// HandleChat answers one chat message.
//
// HTTP: POST /api/ai/chat
// REQUEST BODY:
//
//	{"history": [{"role": "user", "content": "hi"}, ...],
//	 "message": "What is Fawry?", "pageContext": "Startups page", "surface": "chat"}
//
// A newer message from the same signed-in user on the same surface
// supersedes this one; the response is then {"superseded": true} and
// carries no message. Anonymous requests never supersede each other.
func (h *AIHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		History     []model.ChatMessage `json:"history"`
		Message     string              `json:"message"`
		PageContext string              `json:"pageContext"`
		Surface     string              `json:"surface"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	turn, err := h.assistant.Chat(r.Context(), clientKey(r), surfaceOr(req.Surface), req.History, req.Message, req.PageContext)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

// HandlePodcastSummary summarizes a podcast episode, optionally as audio.
//
// HTTP: POST /api/podcasts/{id}/summary
// REQUEST BODY: {"language": "ar", "mode": "audio"}
//
// In audio mode the summary is also read aloud; the speech is returned as
// base64 PCM inside the JSON, or as a WAV file for "Accept: audio/wav".
func (h *AIHandler) HandlePodcastSummary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language model.Language `json:"language"`
		Mode     string         `json:"mode"` // "text" (default) | "audio"
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	withAudio := strings.EqualFold(req.Mode, "audio")

	out, err := h.assistant.PodcastSummary(r.Context(), clientKey(r), chi.URLParam(r, "id"), req.Language, withAudio)
	if err != nil {
		writeError(w, err)
		return
	}

	if withAudio && wantsWAV(r) && out.Speech != nil && !out.Speech.Fallback {
		h.writeWAV(w, out.Speech.Buffer)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AIHandler) writeWAV(w http.ResponseWriter, buf audio.Buffer) {
	var b bytes.Buffer
	if err := buf.WriteWAV(&b); err != nil {
		h.logger.Error("encoding WAV failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: audio.PlaybackNotice})
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(b.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b.Bytes()); err != nil {
		h.logger.Warn("writing WAV response failed", slog.String("error", err.Error()))
	}
}

func wantsWAV(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "audio/wav") || strings.Contains(accept, "audio/x-wav")
}

// clientKey identifies whose requests may supersede each other: the signed-in
// user, or a one-off key for anonymous callers.
func clientKey(r *http.Request) string {
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		return userID
	}
	return "anon-" + xid.New().String()
}

func surfaceOr(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return "chat"
}
