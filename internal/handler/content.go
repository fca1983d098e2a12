package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/nexusmena/internal/content"
	"github.com/sakif/nexusmena/internal/filter"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/service"
)

// ContentHandler serves the content collections, resources and market data.
type ContentHandler struct {
	content *service.ContentService
	logger  *slog.Logger
}

func NewContentHandler(svc *service.ContentService, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{content: svc, logger: logger}
}

// HandleList returns one collection, filtered.
//
// HTTP: GET /api/content/{kind}?region=Egypt&language=ar&topic=AI&category=Tech&q=fintech&duration=short
//
// {kind} accepts singular and plural names; "latest" is the news feed.
// Absent parameters, "" and "All" do not filter.
func (h *ContentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.content.List(chi.URLParam(r, "kind"), criteriaFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleGet returns one item.
//
// HTTP: GET /api/content/{kind}/{id}
func (h *ContentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	it, err := h.content.Get(chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// HandleCreate publishes a new item at the head of its collection.
//
// HTTP: POST /api/content/{kind}
// Auth: Required
// REQUEST BODY: content.Draft, e.g.
//
//	{"title": "...", "description": "...", "url": "https://...", "region": "Egypt",
//	 "podcast": {"duration": "45 min", "topic": "AI"}}
func (h *ContentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var d content.Draft
	if !decodeJSON(w, r, &d) {
		return
	}
	it, err := h.content.Add(chi.URLParam(r, "kind"), d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// HandleResources lists the resource directory.
//
// HTTP: GET /api/resources?category=Podcast
func (h *ContentHandler) HandleResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.content.Resources(r.URL.Query().Get("category")))
}

// HandleCreateResource adds a resource.
//
// HTTP: POST /api/resources
// Auth: Required
func (h *ContentHandler) HandleCreateResource(w http.ResponseWriter, r *http.Request) {
	var res model.Resource
	if !decodeJSON(w, r, &res) {
		return
	}
	created, err := h.content.AddResource(res)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleMarket returns the current snapshot.
//
// HTTP: GET /api/market?category=Crypto
func (h *ContentHandler) HandleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.content.Market(r.URL.Query().Get("category")))
}

// HandleRefreshMarket pulls a new snapshot.
//
// HTTP: POST /api/market/refresh
// Auth: Required
func (h *ContentHandler) HandleRefreshMarket(w http.ResponseWriter, r *http.Request) {
	snap, err := h.content.RefreshMarket(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func criteriaFrom(r *http.Request) filter.Criteria {
	q := r.URL.Query()
	return filter.Criteria{
		Region:   q.Get("region"),
		Language: q.Get("language"),
		Topic:    q.Get("topic"),
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Duration: filter.ParseBucket(q.Get("duration")),
	}
}
