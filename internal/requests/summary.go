/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package requests

import (
	"fmt"
	"time"

	"github.com/rbctelevision/rbcradio/internal/discord"
)

const (
	summaryMessageRunes = 100

	colorSong    = 0x1DB954
	colorMessage = 0x5865F2
	colorVoice   = 0xED4245
)

// Summary is the one-line description stored on the moderation log.
func Summary(p Payload) string {
	switch r := p.(type) {
	case SongRequest:
		return fmt.Sprintf("Song: %s by %s", r.SongTitle, r.SongArtist)
	case MessageRequest:
		runes := []rune(r.Message)
		if len(runes) > summaryMessageRunes {
			return "Message: " + string(runes[:summaryMessageRunes]) + "..."
		}
		return "Message: " + r.Message
	case VoiceRequest:
		return "Voice memo submitted"
	default:
		return ""
	}
}

// VoiceFileName names the uploaded clip after the submission time.
func VoiceFileName(now time.Time) string {
	return fmt.Sprintf("voice_memo_%d.webm", now.UnixMilli())
}

// BuildMessage renders the Discord notification for a payload.
func BuildMessage(p Payload, now time.Time) (discord.Message, error) {
	embed := discord.Embed{Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00")}
	var files []discord.File

	switch r := p.(type) {
	case SongRequest:
		embed.Title = "🎵 New Song Request"
		embed.Color = colorSong
		embed.Fields = []discord.Field{
			{Name: "Requested By", Value: r.Name, Inline: true},
			{Name: "Song", Value: fmt.Sprintf("[%s](%s)", r.SongTitle, r.SpotifyURL), Inline: true},
			{Name: "Artist", Value: r.SongArtist, Inline: true},
		}
		if r.AlbumArt != "" {
			embed.Thumbnail = &discord.Image{URL: r.AlbumArt}
		}
	case MessageRequest:
		embed.Title = "💬 New Message"
		embed.Color = colorMessage
		embed.Fields = []discord.Field{
			{Name: "From", Value: r.Name, Inline: true},
			{Name: "Message", Value: r.Message, Inline: false},
		}
	case VoiceRequest:
		audio, err := DecodeVoice(r.VoiceData)
		if err != nil {
			return discord.Message{}, invalid("voiceData", "Voice memo could not be read")
		}
		embed.Title = "🎤 New Voice Memo"
		embed.Color = colorVoice
		embed.Fields = []discord.Field{{Name: "From", Value: r.Name, Inline: true}}
		files = append(files, discord.File{Name: VoiceFileName(now), ContentType: "audio/webm", Data: audio})
	default:
		return discord.Message{}, fmt.Errorf("%w: %T", ErrUnknownType, p)
	}

	if c := p.AdditionalComments(); c != "" {
		embed.Fields = append(embed.Fields, discord.Field{Name: "Additional Comments", Value: c, Inline: false})
	}
	return discord.Message{Embeds: []discord.Embed{embed}, Files: files}, nil
}
