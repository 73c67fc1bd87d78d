/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package azuracast

import (
	"time"

	"github.com/rbctelevision/rbcradio/internal/schedule"
)

// Song is track metadata as AzuraCast reports it.
type Song struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Album  string `json:"album"`
	Art    string `json:"art"`
}

// SongHistoryItem is a played track.
type SongHistoryItem struct {
	ShID     int64 `json:"sh_id"`
	PlayedAt int64 `json:"played_at"`
	Duration int   `json:"duration"`
	Song     Song  `json:"song"`
}

// CurrentSong is the track on air.
type CurrentSong struct {
	SongHistoryItem
	Elapsed   int `json:"elapsed"`
	Remaining int `json:"remaining"`
}

// Listeners are the station's listener counts.
type Listeners struct {
	Total   int `json:"total"`
	Unique  int `json:"unique"`
	Current int `json:"current"`
}

// Live describes a live DJ takeover.
type Live struct {
	IsLive       bool   `json:"is_live"`
	StreamerName string `json:"streamer_name"`
}

// NowPlaying is the /api/nowplaying/{station} payload, trimmed to what we read.
type NowPlaying struct {
	Listeners   Listeners         `json:"listeners"`
	Live        Live              `json:"live"`
	NowPlaying  *CurrentSong      `json:"now_playing"`
	SongHistory []SongHistoryItem `json:"song_history"`
	IsOnline    bool              `json:"is_online"`
}

// ScheduleItem is one entry of the public station schedule.
type ScheduleItem struct {
	ID             int64  `json:"id"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	StartTimestamp int64  `json:"start_timestamp"`
	EndTimestamp   int64  `json:"end_timestamp"`
	IsNow          bool   `json:"is_now"`
}

// Entry converts the item to a schedule entry.
func (s ScheduleItem) Entry() schedule.Entry {
	name := s.Name
	if name == "" {
		name = s.Title
	}
	return schedule.Entry{
		ID:    s.ID,
		Name:  name,
		Start: time.Unix(s.StartTimestamp, 0),
		End:   time.Unix(s.EndTimestamp, 0),
		IsNow: s.IsNow,
	}
}

// Entries converts a schedule payload.
func Entries(items []ScheduleItem) []schedule.Entry {
	out := make([]schedule.Entry, len(items))
	for i, it := range items {
		out[i] = it.Entry()
	}
	return out
}

// Podcast is a public podcast (a show).
type Podcast struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Language     string `json:"language"`
	Author       string `json:"author"`
	HasCustomArt bool   `json:"has_custom_art"`
	Art          string `json:"art"`
}

// EpisodeMedia is the episode's audio file.
type EpisodeMedia struct {
	Length float64 `json:"length"`
	Path   string  `json:"path"`
}

// Episode is a public podcast episode.
type Episode struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	PublishAt    int64         `json:"publish_at"`
	HasCustomArt bool          `json:"has_custom_art"`
	Art          string        `json:"art"`
	Media        *EpisodeMedia `json:"media,omitempty"`
}
