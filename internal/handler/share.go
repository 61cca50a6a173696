package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/snippet-vault/internal/clock"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/service"
	"github.com/sakif/snippet-vault/internal/visibility"
)

//go:embed templates/share.html
var templateFS embed.FS

// ShareHandler serves public snippets to anonymous visitors. A snippet is
// served only while it is public right now; each view counts as one use.
type ShareHandler struct {
	snippets  *service.SnippetService
	templates *template.Template
	clock     clock.Clock
	logger    *slog.Logger
}

// NewShareHandler parses the share page once at startup.
func NewShareHandler(snippets *service.SnippetService, clk clock.Clock, logger *slog.Logger) (*ShareHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/share.html")
	if err != nil {
		return nil, err
	}
	return &ShareHandler{snippets: snippets, templates: tmpl, clock: clk, logger: logger}, nil
}

// publicSnippet hides owner and bookkeeping fields from anonymous readers.
type publicSnippet struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Code            string     `json:"code"`
	Language        string     `json:"language"`
	Category        string     `json:"category"`
	Tags            []string   `json:"tags"`
	UsageCount      int64      `json:"usageCount"`
	InCommunity     bool       `json:"inCommunity"`
	PublicExpiresAt *time.Time `json:"publicExpiresAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toPublic(s *model.Snippet, now time.Time) publicSnippet {
	p := publicSnippet{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Code:        s.Code,
		Language:    s.Language,
		Category:    s.Category,
		Tags:        s.Tags,
		UsageCount:  s.UsageCount,
		InCommunity: s.InCommunity,
		CreatedAt:   s.CreatedAt,
	}
	if visibility.ComputeLinkState(now, s.PublicExpiresAt) == visibility.LinkActive {
		p.PublicExpiresAt = s.PublicExpiresAt
	}
	return p
}

// HandleShareJSON returns a public snippet.
//
// HTTP: GET /api/share/{id}
func (h *ShareHandler) HandleShareJSON(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.GetPublic(r.Context(), viewerID(r), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, toPublic(snippet, h.clock.Now()))
}

// HandleShareRaw returns the code as a download named after the language.
//
// HTTP: GET /api/share/{id}/raw
func (h *ShareHandler) HandleShareRaw(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.GetPublic(r.Context(), viewerID(r), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName(snippet)+`"`)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write([]byte(snippet.Code))
}

// HandleSharePage renders the public snippet as HTML.
//
// HTTP: GET /share/{id}
func (h *ShareHandler) HandleSharePage(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.GetPublic(r.Context(), viewerID(r), pathID(r))
	if err != nil {
		status, _ := errorStatus(err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	data := map[string]any{
		"Snippet":       snippet,
		"LanguageLabel": languageLabel(snippet.Language),
		"FileName":      fileName(snippet),
		"ExpiresAt":     toPublic(snippet, h.clock.Now()).PublicExpiresAt,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "share.html", data); err != nil {
		h.logger.Error("failed to render share page",
			slog.String("id", snippet.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func fileName(s *model.Snippet) string {
	return "snippet-" + s.ID + "." + model.FileExtension(s.Language)
}

func languageLabel(language string) string {
	for _, o := range model.Languages {
		if o.Value == language {
			return o.Label
		}
	}
	return language
}
