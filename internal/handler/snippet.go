package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/service"
)

// SnippetHandler serves the owner-scoped snippet API: CRUD, listings,
// favorites, clone, run, explore and import/export.
//
// The handler parses HTTP and calls the service. It never touches the
// database and holds no business rules.
type SnippetHandler struct {
	snippets *service.SnippetService
	runs     *service.RunService
	logger   *slog.Logger
}

func NewSnippetHandler(snippets *service.SnippetService, runs *service.RunService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, runs: runs, logger: logger}
}

// snippetRequest is the body of create, update and each import item.
// Catalog membership and tag normalization are checked by the service.
type snippetRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Code        string   `json:"code" validate:"required,max=100000"`
	Language    string   `json:"language" validate:"omitempty,max=32"`
	Category    string   `json:"category" validate:"omitempty,max=32"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=32"`
}

func (req snippetRequest) input() service.SnippetInput {
	return service.SnippetInput{
		Title:       req.Title,
		Description: req.Description,
		Code:        req.Code,
		Language:    req.Language,
		Category:    req.Category,
		Tags:        req.Tags,
	}
}

type favoriteRequest struct {
	IsFavorite *bool `json:"isFavorite" validate:"required"`
}

// HandleList returns one page of the caller's snippets, newest first.
//
// HTTP: GET /api/snippets?page=1&search=auth&favorites=true&category=utils
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := pageParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	result, err := h.snippets.List(r.Context(), userID, service.ListQuery{
		Page:         page,
		Search:       q.Get("search"),
		FavoriteOnly: boolParam(r, "favorites"),
		Category:     q.Get("category"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleExplore lists the community catalog.
//
// HTTP: GET /api/explore?page=1&search=fetch
func (h *SnippetHandler) HandleExplore(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.snippets.Explore(r.Context(), service.ListQuery{
		Page:   page,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCreate stores a new private snippet.
//
// HTTP: POST /api/snippets
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req snippetRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Create(r.Context(), userID, req.input())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/snippets/"+snippet.ID)
	setETag(w, snippet.Version)
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleGet returns one snippet the caller can see.
//
// HTTP: GET /api/snippets/{id}
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Get(r.Context(), userID, pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, snippet.Version)
	writeJSON(w, http.StatusOK, snippet)
}

// HandleUpdate replaces the content fields. Sharing state is not touched
// here; it has its own endpoints.
//
// HTTP: PUT /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req snippetRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Update(r.Context(), userID, pathID(r), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	setETag(w, snippet.Version)
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet. Clones of it are left alone.
//
// HTTP: DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.snippets.Delete(r.Context(), userID, pathID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFavorite sets or clears the favorite flag.
//
// HTTP: PUT /api/snippets/{id}/favorite {"isFavorite": true}
func (h *SnippetHandler) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req favoriteRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.SetFavorite(r.Context(), userID, pathID(r), *req.IsFavorite)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleClone copies a visible snippet into the caller's library.
//
// HTTP: POST /api/snippets/{id}/clone
func (h *SnippetHandler) HandleClone(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	clone, err := h.snippets.Clone(r.Context(), userID, pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/snippets/"+clone.ID)
	writeJSON(w, http.StatusCreated, clone)
}

// HandleRun executes the snippet in the sandbox.
//
// HTTP: POST /api/snippets/{id}/run
func (h *SnippetHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.runs.Run(r.Context(), userID, pathID(r))
	if err != nil {
		if status, _ := errorStatus(err); status == http.StatusInternalServerError {
			h.logger.Error("snippet run failed",
				slog.String("id", pathID(r)),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleExport downloads the caller's library as a JSON array.
//
// HTTP: GET /api/export
func (h *SnippetHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snippets, err := h.snippets.Export(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="snippets.json"`)
	writeJSON(w, http.StatusOK, snippets)
}

// HandleImport re-creates exported snippets under the caller. Only content
// fields are read from the file; ids, owners, sharing and counters are
// assigned fresh.
//
// HTTP: POST /api/import  [ {...}, {...} ]
func (h *SnippetHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var items []model.Snippet
	if err := decodeJSON(w, r, &items, maxImportBodyBytes); err != nil {
		writeError(w, err)
		return
	}

	inputs := make([]service.SnippetInput, len(items))
	for i, item := range items {
		inputs[i] = service.SnippetInput{
			Title:       item.Title,
			Description: item.Description,
			Code:        item.Code,
			Language:    item.Language,
			Category:    item.Category,
			Tags:        item.Tags,
		}
	}

	created, err := h.snippets.Import(r.Context(), userID, inputs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"imported": len(created),
		"snippets": created,
		"message":  fmt.Sprintf("Imported %d snippets", len(created)),
	})
}
