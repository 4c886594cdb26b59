// Package handlers contains the HTTP handlers for Podium's REST API and
// the live activity WebSocket feed.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/podium-hq/podium/internal/config"
	"github.com/podium-hq/podium/internal/engine"
	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/pkg/types"
)

// APIHandlers contains HTTP handlers for the REST API. The handlers are
// thin adapters over the ingestion and discovery engines; no resolution or
// ranking logic lives here.
type APIHandlers struct {
	ingestor  *engine.Ingestor
	discovery *engine.Discovery
	store     storage.Store
	config    *config.Config
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(ingestor *engine.Ingestor, discovery *engine.Discovery, store storage.Store, cfg *config.Config) *APIHandlers {
	return &APIHandlers{
		ingestor:  ingestor,
		discovery: discovery,
		store:     store,
		config:    cfg,
	}
}

// PostEvent handles POST /api/events - ingest one event's speaker mentions.
// The body carries either raw event text (extracted server-side) or
// pre-extracted mentions.
func (h *APIHandlers) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.EventID == "" {
		respondError(w, http.StatusBadRequest, "event_id is required", nil)
		return
	}
	if req.Text == "" && len(req.Mentions) == 0 {
		respondError(w, http.StatusBadRequest, "either text or mentions is required", nil)
		return
	}

	var result *engine.IngestResult
	var err error
	if len(req.Mentions) > 0 {
		result, err = h.ingestor.IngestMentions(r.Context(), req.EventID, req.Mentions)
	} else {
		result, err = h.ingestor.IngestEvent(r.Context(), req.EventID, req.Text)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to ingest event", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Search handles GET /api/search?q={query} - natural-language speaker
// discovery with explained, ranked results.
func (h *APIHandlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter 'q' is required", nil)
		return
	}

	result, err := h.discovery.Discover(r.Context(), query)
	if err != nil {
		if errors.Is(err, types.ErrInvalidQuery) {
			respondError(w, http.StatusBadRequest, "invalid query", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "search failed", err)
		return
	}

	respondJSON(w, http.StatusOK, SearchResponse{
		Query:      result.Query,
		Candidates: result.Candidates,
		Total:      len(result.Candidates),
	})
}

// ListSpeakers handles GET /api/speakers - list canonical speakers with
// pagination. Tombstoned speakers are included only with ?tombstoned=true.
func (h *APIHandlers) ListSpeakers(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{
		Page:              parseInt(r.URL.Query().Get("page"), 1),
		Limit:             parseInt(r.URL.Query().Get("limit"), 20),
		IncludeTombstoned: r.URL.Query().Get("tombstoned") == "true",
	}
	opts.Normalize()

	result, err := h.store.ListSpeakers(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list speakers", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetSpeaker handles GET /api/speakers/{id} - full speaker profile with
// attributes and event history. Tombstoned speakers are still retrievable
// so stale references resolve to the merge pointer.
func (h *APIHandlers) GetSpeaker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "speaker ID is required", nil)
		return
	}

	speaker, err := h.store.GetSpeaker(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "speaker not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get speaker", err)
		return
	}

	attrs, err := h.store.GetAttributes(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get attributes", err)
		return
	}
	participations, err := h.store.ListParticipations(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get participations", err)
		return
	}

	respondJSON(w, http.StatusOK, SpeakerProfileResponse{
		Speaker:        speaker,
		Attributes:     attrs,
		Participations: participations,
	})
}

// PostAttribute handles POST /api/speakers/{id}/attributes - record an
// extracted attribute. Attributes below the confidence threshold are
// acknowledged but not stored.
func (h *APIHandlers) PostAttribute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "speaker ID is required", nil)
		return
	}

	var req AttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Kind == "" || req.Value == "" {
		respondError(w, http.StatusBadRequest, "kind and value are required", nil)
		return
	}

	// The speaker must exist; PutAttribute alone would happily orphan rows.
	if _, err := h.store.GetSpeaker(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "speaker not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get speaker", err)
		return
	}

	attr := &types.Attribute{
		SpeakerID:  id,
		Kind:       types.AttributeKind(req.Kind),
		Value:      req.Value,
		Region:     req.Region,
		Confidence: req.Confidence,
		Source:     req.Source,
		IsPrimary:  req.IsPrimary,
	}

	stored, err := h.ingestor.RecordAttribute(r.Context(), attr)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "invalid attribute", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to record attribute", err)
		return
	}

	respondJSON(w, http.StatusOK, AttributeResponse{Stored: stored})
}

// ListAudit handles GET /api/audit?status={pending_review|reviewed} -
// ambiguous-merge audit entries, newest first.
func (h *APIHandlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListAudit(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list audit entries", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

// ResolveAudit handles POST /api/audit/{id}/resolve - mark an ambiguous
// merge as reviewed.
func (h *APIHandlers) ResolveAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "audit entry ID is required", nil)
		return
	}

	var req ResolveAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.store.ResolveAudit(r.Context(), id, req.Notes); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "audit entry not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to resolve audit entry", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": types.AuditReviewed})
}

// PostSweep handles POST /api/sweep - run the offline merge sweep.
// The sweep waits for in-flight ingestion to drain before it runs.
func (h *APIHandlers) PostSweep(w http.ResponseWriter, r *http.Request) {
	actions, err := h.ingestor.Sweep(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "sweep failed", err)
		return
	}

	merges := make([]SweepMerge, 0, len(actions))
	for _, a := range actions {
		merges = append(merges, SweepMerge{
			SurvivingID: a.SurvivingID,
			AbsorbedID:  a.AbsorbedID,
		})
	}

	respondJSON(w, http.StatusOK, SweepResponse{Merges: merges, Total: len(merges)})
}

// parseInt parses an integer from a string, returning defaultValue if
// parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; log and move on.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
