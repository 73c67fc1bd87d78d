/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rbctelevision/rbcradio/internal/auth"
	"github.com/rbctelevision/rbcradio/internal/azuracast"
	"github.com/rbctelevision/rbcradio/internal/ratelimit"
	"github.com/rbctelevision/rbcradio/internal/requests"
)

// maxRelayBody bounds the small JSON bodies of every relay except send-request.
const maxRelayBody = 64 << 10

func decodeRelayBody(r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRelayBody)).Decode(dst)
}

func (a *API) handleRelayOptions(w http.ResponseWriter, r *http.Request) {
	// Preflights carrying Access-Control-Request-Method are answered by the
	// cors middleware; bare OPTIONS probes land here.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	w.WriteHeader(http.StatusOK)
}

// writeUpstreamError mirrors the upstream status for AzuraCast failures.
func (a *API) writeUpstreamError(w http.ResponseWriter, err error, message string) {
	var se *azuracast.StatusError
	if errors.As(err, &se) {
		a.logger.Warn().Int("status", se.StatusCode).Str("body", se.Body).Msg(message)
		writeJSON(w, se.StatusCode, map[string]any{"error": message, "status": se.StatusCode})
		return
	}
	a.logger.Error().Err(err).Msg(message)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (a *API) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := decodeRelayBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if a.azura == nil || !a.azura.HasAPIKey() {
		a.logger.Error().Msg("AzuraCast API key not configured")
		writeError(w, http.StatusInternalServerError, "API key not configured")
		return
	}

	data, err := a.azura.StreamerSchedule(r.Context(), req.Start, req.End)
	if err != nil {
		a.writeUpstreamError(w, err, "Failed to fetch schedule")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handleGetPodcastAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type      string `json:"type"`
		PodcastID string `json:"podcastId"`
		EpisodeID string `json:"episodeId"`
	}
	if err := decodeRelayBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if a.azura == nil || !a.azura.HasAPIKey() {
		a.logger.Error().Msg("AzuraCast API key not configured")
		writeError(w, http.StatusInternalServerError, "API key not configured")
		return
	}

	switch req.Type {
	case "art":
		url, err := a.azura.PodcastArtURL(r.Context(), req.PodcastID)
		if err != nil {
			a.writeUpstreamError(w, err, "Failed to fetch asset")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	case "episode":
		data, err := a.azura.Episode(r.Context(), req.PodcastID, req.EpisodeID)
		if err != nil {
			a.writeUpstreamError(w, err, "Failed to fetch asset")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "Invalid asset type")
	}
}

func (a *API) handleGetAlbumArt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Artist string `json:"artist"`
	}
	if err := decodeRelayBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Artist) == "" {
		writeError(w, http.StatusBadRequest, "Title and artist are required")
		return
	}

	var art *string
	if a.art != nil {
		url, err := a.art.Lookup(r.Context(), req.Title, req.Artist)
		if err != nil {
			a.logger.Warn().Err(err).Str("title", req.Title).Str("artist", req.Artist).Msg("album art lookup failed")
		} else if url != "" {
			art = &url
		}
	}
	writeJSON(w, http.StatusOK, map[string]*string{"albumArt": art})
}

func (a *API) handleSearchSpotify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeRelayBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	query := strings.TrimSpace(req.Query)
	if len([]rune(query)) < 2 || a.search == nil {
		writeJSON(w, http.StatusOK, map[string]any{"tracks": []any{}})
		return
	}

	tracks, err := a.search.SearchTracks(r.Context(), query)
	if err != nil {
		a.logger.Error().Err(err).Msg("spotify search failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "tracks": []any{}})
		return
	}
	if tracks == nil {
		writeJSON(w, http.StatusOK, map[string]any{"tracks": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (a *API) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	fail := func(status int, msg string) {
		writeJSON(w, status, map[string]any{"success": false, "error": msg})
	}

	p, err := requests.DecodePayloadFrom(r)
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}
	if a.requests == nil {
		fail(http.StatusInternalServerError, requests.ErrNotifierNotConfigured.Error())
		return
	}

	_, err = a.requests.Submit(r.Context(), p, requests.ClientMeta{
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	var verr *requests.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Request submitted successfully!"})
	case errors.As(err, &verr):
		fail(http.StatusBadRequest, verr.Message)
	case errors.Is(err, requests.ErrBanned):
		fail(http.StatusForbidden, "You are not allowed to submit requests.")
	case errors.Is(err, requests.ErrNotifyFailed):
		a.logger.Error().Err(err).Msg("send-request delivery failed")
		fail(http.StatusInternalServerError, requests.ErrNotifyFailed.Error())
	default:
		a.logger.Error().Err(err).Msg("send-request failed")
		fail(http.StatusInternalServerError, err.Error())
	}
}

func (a *API) handleSetupAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SetupKey string `json:"setupKey"`
	}
	if err := decodeRelayBody(r, &req); err != nil || !auth.ValidSetupKey(a.setupKey, req.SetupKey) {
		writeError(w, http.StatusUnauthorized, "Unauthorized - invalid setup key")
		return
	}
	if a.db == nil {
		writeError(w, http.StatusInternalServerError, "database not configured")
		return
	}

	results := auth.SeedAdmins(r.Context(), a.db, a.adminSeeds, a.logger)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": results,
		"note":    "Unset RBC_ADMIN_SETUP_KEY now to disable this function.",
	})
}
