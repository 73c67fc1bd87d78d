/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rbctelevision/rbcradio/internal/auth"
	"github.com/rbctelevision/rbcradio/internal/logbuffer"
	"github.com/rbctelevision/rbcradio/internal/moderation"
	"github.com/rbctelevision/rbcradio/internal/storage"
)

// writeModerationError maps moderation errors to status codes.
func (a *API) writeModerationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, moderation.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, moderation.ErrAlreadyBanned):
		writeError(w, http.StatusConflict, "already_banned")
	case errors.Is(err, moderation.ErrInvalidIP):
		writeError(w, http.StatusBadRequest, "invalid_ip")
	case errors.Is(err, moderation.ErrInvalidSeverity):
		writeError(w, http.StatusBadRequest, "invalid_type")
	case errors.Is(err, moderation.ErrMissingTitle):
		writeError(w, http.StatusBadRequest, "title_required")
	case errors.Is(err, moderation.ErrMissingMessage):
		writeError(w, http.StatusBadRequest, "message_required")
	default:
		a.logger.Error().Err(err).Msg("moderation operation failed")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

// Request logs

func (a *API) handleRequestLogsList(w http.ResponseWriter, r *http.Request) {
	limit := moderation.DefaultRequestLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := a.moderation.ListRequestLogs(r.Context(), limit)
	if err != nil {
		a.writeModerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *API) handleRequestLogGet(w http.ResponseWriter, r *http.Request) {
	entry, err := a.moderation.RequestLog(r.Context(), chi.URLParam(r, "logID"))
	if err != nil {
		a.writeModerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleRequestLogVoice(w http.ResponseWriter, r *http.Request) {
	entry, err := a.moderation.RequestLog(r.Context(), chi.URLParam(r, "logID"))
	if err != nil {
		a.writeModerationError(w, err)
		return
	}
	if entry.AttachmentKey == "" || a.store == nil {
		writeError(w, http.StatusNotFound, "no_attachment")
		return
	}

	data, err := a.store.Get(r.Context(), entry.AttachmentKey)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no_attachment")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("key", entry.AttachmentKey).Msg("voice memo download failed")
		writeError(w, http.StatusInternalServerError, "storage_error")
		return
	}

	w.Header().Set("Content-Type", "audio/webm")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+entry.ID+`.webm"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Bans

func (a *API) handleBansList(w http.ResponseWriter, r *http.Request) {
	bans, err := a.moderation.ListBans(r.Context())
	if err != nil {
		a.writeModerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bans)
}

func (a *API) handleBanCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IPAddress string `json:"ip_address"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var bannedBy string
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		bannedBy = claims.UserID
	}

	ban, err := a.moderation.Ban(r.Context(), req.IPAddress, req.Reason, bannedBy)
	if err != nil {
		a.writeModerationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ban)
}

func (a *API) handleBanDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.moderation.Unban(r.Context(), chi.URLParam(r, "banID")); err != nil {
		a.writeModerationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Announcements

func (a *API) handleAnnouncementsList(w http.ResponseWriter, r *http.Request) {
	list, err := a.moderation.ListAnnouncements(r.Context())
	if err != nil {
		a.writeModerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleAnnouncementCreate(w http.ResponseWriter, r *http.Request) {
	var in moderation.AnnouncementInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	ann, err := a.moderation.CreateAnnouncement(r.Context(), in)
	if err != nil {
		a.writeModerationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ann)
}

func (a *API) handleAnnouncementUpdate(w http.ResponseWriter, r *http.Request) {
	var patch moderation.AnnouncementPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	ann, err := a.moderation.UpdateAnnouncement(r.Context(), chi.URLParam(r, "announcementID"), patch)
	if err != nil {
		a.writeModerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

func (a *API) handleAnnouncementToggle(w http.ResponseWriter, r *http.Request) {
	ann, err := a.moderation.ToggleAnnouncement(r.Context(), chi.URLParam(r, "announcementID"))
	if err != nil {
		a.writeModerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

func (a *API) handleAnnouncementDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.moderation.DeleteAnnouncement(r.Context(), chi.URLParam(r, "announcementID")); err != nil {
		a.writeModerationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// System logs

func (a *API) handleSystemLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "Log buffer not available")
		return
	}

	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		Search:     q.Get("search"),
		Limit:      500,
		Descending: q.Get("order") != "asc",
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	}

	entries := a.logBuffer.Query(params)
	if entries == nil {
		entries = []logbuffer.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries, "count": len(entries)})
}

func (a *API) handleSystemLogComponents(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "Log buffer not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": a.logBuffer.Components()})
}

func (a *API) handleSystemLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "Log buffer not available")
		return
	}
	writeJSON(w, http.StatusOK, a.logBuffer.Stats())
}
