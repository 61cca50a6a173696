package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/snippet-vault/internal/service"
	"github.com/sakif/snippet-vault/internal/visibility"
)

// VisibilityHandler exposes the sharing controls of a snippet:
//
//	GET    /api/snippets/{id}/visibility  current state
//	POST   /api/snippets/{id}/link        issue or replace a share link
//	DELETE /api/snippets/{id}/link        revoke the link
//	POST   /api/snippets/{id}/community   publish to the catalog
//	DELETE /api/snippets/{id}/community   retract from the catalog
//
// Every mutation accepts an optional If-Match header carrying the version
// from a previous ETag.
type VisibilityHandler struct {
	svc          *service.VisibilityService
	publicOrigin string
	logger       *slog.Logger
}

func NewVisibilityHandler(svc *service.VisibilityService, publicOrigin string, logger *slog.Logger) *VisibilityHandler {
	return &VisibilityHandler{
		svc:          svc,
		publicOrigin: strings.TrimRight(publicOrigin, "/"),
		logger:       logger,
	}
}

// linkRequest keeps days raw so "7", 7 and 7.5 can be told apart:
// ParseLinkDays accepts the first two and rejects the third.
type linkRequest struct {
	Days json.RawMessage `json:"days"`
}

type visibilityResponse struct {
	*service.VisibilityResult
	ShareURL string `json:"shareUrl,omitempty"`
}

func (h *VisibilityHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.State(r.Context(), userID, pathID(r))
	h.respond(w, res, err)
}

// HandleIssueLink creates a share link valid for 1 to 15 days. Larger values
// are clamped; zero, negative and non-integer values are rejected without
// touching the snippet.
//
// HTTP: POST /api/snippets/{id}/link {"days": 7}
func (h *VisibilityHandler) HandleIssueLink(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req linkRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeError(w, err)
		return
	}
	days, err := visibility.ParseLinkDays(string(req.Days))
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.IssueLink(r.Context(), userID, pathID(r), days, version)
	h.respond(w, res, err)
}

func (h *VisibilityHandler) HandleRevokeLink(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.RevokeLink)
}

func (h *VisibilityHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Publish)
}

func (h *VisibilityHandler) HandleRetract(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Retract)
}

type visibilityOp func(ctx context.Context, callerID, id string, expectedVersion int64) (*service.VisibilityResult, error)

func (h *VisibilityHandler) mutate(w http.ResponseWriter, r *http.Request, op visibilityOp) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	version, err := expectedVersion(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := op(r.Context(), userID, pathID(r), version)
	h.respond(w, res, err)
}

func (h *VisibilityHandler) respond(w http.ResponseWriter, res *service.VisibilityResult, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	resp := visibilityResponse{VisibilityResult: res}
	if res.View.SharePath != "" {
		resp.ShareURL = h.publicOrigin + res.View.SharePath
	}
	setETag(w, res.Snippet.Version)
	writeJSON(w, http.StatusOK, resp)
}
