/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rbctelevision/rbcradio/internal/azuracast"
	"github.com/rbctelevision/rbcradio/internal/cache"
	"github.com/rbctelevision/rbcradio/internal/models"
	"github.com/rbctelevision/rbcradio/internal/nowplaying"
	"github.com/rbctelevision/rbcradio/internal/schedule"
)

// scheduleLastGoodTTL bounds how stale the fallback schedule may get.
const scheduleLastGoodTTL = 24 * time.Hour

// scheduleEntries returns the public schedule, preferring the short-lived
// cache, then upstream, then the last good copy. An empty schedule is
// returned when all three are unavailable.
func (a *API) scheduleEntries(ctx context.Context) []schedule.Entry {
	var items []azuracast.ScheduleItem
	if a.cache.Get(ctx, cache.KeySchedule, &items) {
		return azuracast.Entries(items)
	}

	if a.azura != nil {
		fetched, err := a.azura.Schedule(ctx)
		if err == nil {
			_ = a.cache.Set(ctx, cache.KeySchedule, fetched, a.scheduleTTL)
			_ = a.cache.Set(ctx, cache.KeyScheduleLastGood, fetched, scheduleLastGoodTTL)
			return azuracast.Entries(fetched)
		}
		a.logger.Error().Err(err).Msg("failed to fetch schedule, using last good copy")
	}

	if a.cache.Get(ctx, cache.KeyScheduleLastGood, &items) {
		return azuracast.Entries(items)
	}
	return nil
}

func (a *API) requestLocation(r *http.Request) (*time.Location, error) {
	tz := strings.TrimSpace(r.URL.Query().Get("tz"))
	if tz == "" {
		return a.loc, nil
	}
	return time.LoadLocation(tz)
}

func (a *API) handleSchedule(w http.ResponseWriter, r *http.Request) {
	loc, err := a.requestLocation(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timezone")
		return
	}

	entries := a.scheduleEntries(r.Context())
	sel := schedule.NewSelector(
		schedule.Window(a.now(), loc, a.windowDays),
		schedule.Group(entries, loc),
		loc,
	)
	if day := r.URL.Query().Get("day"); day != "" {
		if err := sel.Select(day); err != nil {
			writeError(w, http.StatusBadRequest, "unknown_day")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tabs": sel.Tabs(),
		"view": sel.View(),
	})
}

func (a *API) handleScheduleICal(w http.ResponseWriter, r *http.Request) {
	entries := a.scheduleEntries(r.Context())
	body := schedule.ICal("RBC Radio", "rbctelevision.org", entries, a.now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="rbcradio-schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleNowPlaying never fails for listeners: until the first successful
// poll the player gets an empty payload and keeps polling.
func (a *API) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	if a.nowPlaying != nil {
		if snap, ok := a.nowPlaying.Current(); ok {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"now_playing": nil,
		"history":     []nowplaying.Track{},
		"listeners":   0,
		"live":        false,
		"fetched_at":  nil,
	})
}

func (a *API) handleShows(w http.ResponseWriter, r *http.Request) {
	shows := []azuracast.Podcast{}
	if a.cache.Get(r.Context(), cache.KeyPodcasts, &shows) {
		writeJSON(w, http.StatusOK, shows)
		return
	}

	if a.azura != nil {
		fetched, err := a.azura.Podcasts(r.Context())
		if err != nil {
			a.logger.Error().Err(err).Msg("failed to fetch shows")
		} else if fetched != nil {
			shows = fetched
			_ = a.cache.Set(r.Context(), cache.KeyPodcasts, shows, a.showsTTL)
		}
	}
	writeJSON(w, http.StatusOK, shows)
}

func (a *API) writeShowError(w http.ResponseWriter, err error) {
	var se *azuracast.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	a.logger.Error().Err(err).Msg("show lookup failed")
	writeError(w, http.StatusBadGateway, "upstream_error")
}

func (a *API) handleShow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "showID")
	if a.azura == nil {
		writeError(w, http.StatusServiceUnavailable, "upstream_unavailable")
		return
	}

	var show azuracast.Podcast
	if a.cache.Get(r.Context(), cache.KeyPodcast+id, &show) {
		writeJSON(w, http.StatusOK, show)
		return
	}

	fetched, err := a.azura.Podcast(r.Context(), id)
	if err != nil {
		a.writeShowError(w, err)
		return
	}
	_ = a.cache.Set(r.Context(), cache.KeyPodcast+id, fetched, a.showsTTL)
	writeJSON(w, http.StatusOK, fetched)
}

func (a *API) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "showID")
	if a.azura == nil {
		writeError(w, http.StatusServiceUnavailable, "upstream_unavailable")
		return
	}

	episodes := []azuracast.Episode{}
	if a.cache.Get(r.Context(), cache.KeyEpisodes+id, &episodes) {
		writeJSON(w, http.StatusOK, episodes)
		return
	}

	fetched, err := a.azura.Episodes(r.Context(), id)
	if err != nil {
		a.writeShowError(w, err)
		return
	}
	if fetched != nil {
		episodes = fetched
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].PublishAt > episodes[j].PublishAt
	})
	_ = a.cache.Set(r.Context(), cache.KeyEpisodes+id, episodes, a.showsTTL)
	writeJSON(w, http.StatusOK, episodes)
}

func (a *API) handlePublicAnnouncements(w http.ResponseWriter, r *http.Request) {
	list := []models.Announcement{}
	if a.cache.Get(r.Context(), cache.KeyActiveAnnouncements, &list) {
		writeJSON(w, http.StatusOK, list)
		return
	}
	if a.moderation == nil {
		writeJSON(w, http.StatusOK, list)
		return
	}

	active, err := a.moderation.ListActiveAnnouncements(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list active announcements failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if active != nil {
		list = active
	}
	_ = a.cache.Set(r.Context(), cache.KeyActiveAnnouncements, list, a.scheduleTTL)
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleAlbumArtLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title, artist, raw := q.Get("title"), q.Get("artist"), q.Get("art")
	if a.art == nil {
		writeJSON(w, http.StatusOK, map[string]string{"art": raw})
		return
	}

	if raw == "" && strings.TrimSpace(title) != "" && strings.TrimSpace(artist) != "" {
		url, err := a.art.Lookup(r.Context(), title, artist)
		if err != nil {
			a.logger.Debug().Err(err).Msg("album art lookup failed")
		}
		writeJSON(w, http.StatusOK, map[string]string{"art": url})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"art": a.art.Resolve(r.Context(), raw, title, artist)})
}
