package handler

import (
	"net/http"

	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/service"
)

type StatsHandler struct {
	stats *service.StatsService
}

func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// HandleSummary: GET /api/stats
func (h *StatsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := h.stats.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleActivity: GET /api/stats/activity
func (h *StatsHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	days, err := h.stats.Activity(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// HandleTemplates lists the built-in starter snippets.
//
// HTTP: GET /api/templates
func HandleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Templates)
}

// HandleCatalog lists the languages and categories a snippet may use.
//
// HTTP: GET /api/catalog
func HandleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"languages":       model.Languages,
		"categories":      model.Categories,
		"defaultLanguage": model.DefaultLanguage,
		"defaultCategory": model.DefaultCategory,
	})
}
