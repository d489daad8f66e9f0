package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/shared/auth"
	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/types"
)

// Handler serves the read-only claim audit trail
type Handler struct {
	repo    domain.EventRepository
	devMode bool
}

// NewHandler creates a new audit handler. In dev mode requests are not
// checked for an authenticated operator.
func NewHandler(repo domain.EventRepository, devMode bool) *Handler {
	return &Handler{repo: repo, devMode: devMode}
}

// Routes registers the audit routes, mounted under /api/v1/claims
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{claimID}/events", h.ListClaimEvents)
	return r
}

// ListClaimEvents returns the status history of one claim, oldest first
func (h *Handler) ListClaimEvents(w http.ResponseWriter, r *http.Request) {
	if !h.devMode {
		user := auth.GetUser(r.Context())
		if user == nil {
			writeError(w, errors.Unauthorized("authentication required"))
			return
		}
		if !user.CanReadAuditTrail() {
			writeError(w, errors.Forbidden("audit trail access required"))
			return
		}
	}

	claimID, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	limit, offset := defaultLimit, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			writeError(w, errors.BadRequest("invalid limit"))
			return
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			writeError(w, errors.BadRequest("invalid offset"))
			return
		}
	}
	limit, offset = clampPage(limit, offset)

	events, err := h.repo.ListByClaim(r.Context(), claimID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.ClaimEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":   events,
		"limit":  limit,
		"offset": offset,
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
