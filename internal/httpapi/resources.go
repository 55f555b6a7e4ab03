package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"royaltyhub.org/internal/audit"
	"royaltyhub.org/internal/docstore"
)

func pageFromQuery(r *http.Request) docstore.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return docstore.Page{Page: page, Limit: limit}.Normalize()
}

func (a *API) listResources(w http.ResponseWriter, r *http.Request) {
	res, err := a.opts.Catalog.List(r.Context(), identity(r), chi.URLParam(r, "kind"), pageFromQuery(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) getResource(w http.ResponseWriter, r *http.Request) {
	doc, err := a.opts.Catalog.Get(r.Context(), identity(r), chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) createResource(w http.ResponseWriter, r *http.Request) {
	var doc docstore.Document
	if err := decodeJSON(r, &doc); err != nil {
		respondMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	kind := chi.URLParam(r, "kind")
	created, err := a.opts.Catalog.Create(r.Context(), identity(r), kind, doc)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "resource.create", map[string]any{"kind": kind, "id": created.ID()})
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) updateResource(w http.ResponseWriter, r *http.Request) {
	var patch docstore.Document
	if err := decodeJSON(r, &patch); err != nil {
		respondMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	kind, id := chi.URLParam(r, "kind"), chi.URLParam(r, "id")
	updated, err := a.opts.Catalog.Update(r.Context(), identity(r), kind, id, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "resource.update", map[string]any{"kind": kind, "id": id})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deleteResource(w http.ResponseWriter, r *http.Request) {
	kind, id := chi.URLParam(r, "kind"), chi.URLParam(r, "id")
	removed, err := a.opts.Catalog.Delete(r.Context(), identity(r), kind, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "resource.delete", map[string]any{"kind": kind, "id": id})
	writeJSON(w, http.StatusOK, removed)
}
