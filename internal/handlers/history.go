package handlers

import (
	"net/http"
	"strconv"
	"time"

	"media-converter/internal/database"
	"media-converter/internal/identity"
	"media-converter/internal/logging"
	"media-converter/internal/quota"
)

const unauthorizedCode = "UNAUTHORIZED"

// HistoryResponse is one page of conversion history.
type HistoryResponse struct {
	Items  []database.HistoryRecord `json:"items"`
	Total  int64                    `json:"total"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

// QuotaInfo is the caller's usage in the current window. Limit is -1 for
// unlimited tiers.
type QuotaInfo struct {
	Used           int64     `json:"used"`
	Limit          int64     `json:"limit"`
	WindowResetsAt time.Time `json:"windowResetsAt"`
}

// InfoResponse describes the authenticated caller.
type InfoResponse struct {
	UserID      string        `json:"userId"`
	Tier        identity.Tier `json:"tier"`
	Conversions int64         `json:"conversions"`
	Quota       QuotaInfo     `json:"quota"`
}

// GetHistory handles GET /api/user/history. Users see their own records;
// admins see every record.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if !id.Authenticated() {
		writeJSONError(w, http.StatusUnauthorized, unauthorizedCode, "Sign in to view conversion history")
		return
	}

	limit, ok := queryInt(r, "limit", database.DefaultHistoryLimit)
	if !ok || limit <= 0 {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be a positive integer")
		return
	}
	if limit > database.MaxHistoryLimit {
		limit = database.MaxHistoryLimit
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "offset must be a non-negative integer")
		return
	}

	owner := id.UserID
	if id.Tier == identity.TierAdmin {
		owner = ""
	}

	items, err := h.db.ListHistory(r.Context(), database.HistoryQuery{UserID: owner, Limit: limit, Offset: offset})
	if err != nil {
		logging.Error("Failed to list history for %s: %v", id.Key, err)
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL", "Could not load conversion history")
		return
	}
	total, err := h.db.CountHistory(r.Context(), owner)
	if err != nil {
		logging.Error("Failed to count history for %s: %v", id.Key, err)
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL", "Could not load conversion history")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSONStatus(w, http.StatusOK, HistoryResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetInfo handles GET /api/user/info.
func (h *Handlers) GetInfo(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if !id.Authenticated() {
		writeJSONError(w, http.StatusUnauthorized, unauthorizedCode, "Sign in to view account information")
		return
	}

	count, err := h.db.CountHistory(r.Context(), id.UserID)
	if err != nil {
		logging.Error("Failed to count history for %s: %v", id.Key, err)
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL", "Could not load account information")
		return
	}

	info := InfoResponse{
		UserID:      id.UserID,
		Tier:        id.Tier,
		Conversions: count,
		Quota:       QuotaInfo{Limit: h.limits.Ceiling(id.Tier)},
	}

	if h.ledger != nil {
		rec, err := h.ledger.Usage(r.Context(), id.Key, id.Tier)
		if err != nil {
			logging.Error("Failed to load quota for %s: %v", id.Key, err)
			writeJSONError(w, http.StatusInternalServerError, "INTERNAL", "Could not load account information")
			return
		}
		info.Quota.Used = rec.Used
		info.Quota.Limit = h.ledger.Ceiling(id.Tier)
		info.Quota.WindowResetsAt = rec.WindowStart.Add(h.ledger.Window()).UTC()
	}
	if info.Quota.Limit == quota.Unlimited {
		info.Quota.Limit = -1
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSONStatus(w, http.StatusOK, info)
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
