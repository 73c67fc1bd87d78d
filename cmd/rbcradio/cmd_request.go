/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbctelevision/rbcradio/internal/requests"
)

var (
	requestRelay    string
	requestName     string
	requestComments string

	songTitle      string
	songArtist     string
	songSpotifyURL string
	songAlbumArt   string

	messageText string

	voiceFile     string
	voiceDuration float64
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Submit a listener request to a running relay",
	Long: `Submit a song request, message or voice memo through the send-request
relay function, the same way the website's request form does. The payload is
validated locally before anything is sent.

Examples:
  rbcradio request song --name Sam --title "Harvest Moon" --artist "Neil Young" \
    --spotify-url https://open.spotify.com/track/abc
  rbcradio request message --name Sam --text "Hello from the night shift"
  rbcradio request voice --name Sam --file memo.webm --duration 12.5
`,
}

var requestSongCmd = &cobra.Command{
	Use:   "song",
	Short: "Request a song",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitRequest(cmd.Context(), requests.SongRequest{
			Name:       requestName,
			SongTitle:  songTitle,
			SongArtist: songArtist,
			SpotifyURL: songSpotifyURL,
			AlbumArt:   songAlbumArt,
			Comments:   requestComments,
		})
	},
}

var requestMessageCmd = &cobra.Command{
	Use:   "message",
	Short: "Send a text message to the studio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitRequest(cmd.Context(), requests.MessageRequest{
			Name:     requestName,
			Message:  messageText,
			Comments: requestComments,
		})
	},
}

var requestVoiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Send a recorded voice memo",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(voiceFile)
		if err != nil {
			return fmt.Errorf("read voice memo: %w", err)
		}
		req := requests.VoiceRequest{
			Name:      requestName,
			VoiceData: "data:audio/webm;base64," + base64.StdEncoding.EncodeToString(data),
			Comments:  requestComments,
		}
		if cmd.Flags().Changed("duration") {
			req.DurationSeconds = &voiceDuration
		}
		return submitRequest(cmd.Context(), req)
	},
}

func init() {
	requestCmd.PersistentFlags().StringVar(&requestRelay, "relay", "http://localhost:8080", "Origin serving /functions/v1")
	requestCmd.PersistentFlags().StringVar(&requestName, "name", "", "Your name")
	requestCmd.PersistentFlags().StringVar(&requestComments, "comments", "", "Additional comments")

	requestSongCmd.Flags().StringVar(&songTitle, "title", "", "Song title")
	requestSongCmd.Flags().StringVar(&songArtist, "artist", "", "Song artist")
	requestSongCmd.Flags().StringVar(&songSpotifyURL, "spotify-url", "", "Spotify track URL")
	requestSongCmd.Flags().StringVar(&songAlbumArt, "album-art", "", "Album art URL")

	requestMessageCmd.Flags().StringVar(&messageText, "text", "", "Message text")

	requestVoiceCmd.Flags().StringVar(&voiceFile, "file", "", "Path to a WebM recording")
	requestVoiceCmd.Flags().Float64Var(&voiceDuration, "duration", 0, "Recording length in seconds")
	_ = requestVoiceCmd.MarkFlagRequired("file")

	requestCmd.AddCommand(requestSongCmd, requestMessageCmd, requestVoiceCmd)
	rootCmd.AddCommand(requestCmd)
}

func submitRequest(ctx context.Context, p requests.Payload) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	flow := requests.NewFlow(requests.NewClient(requestRelay, nil), requests.DefaultLimits)
	if err := flow.Submit(ctx, p); err != nil {
		return err
	}
	fmt.Println(flow.Message())
	return nil
}
